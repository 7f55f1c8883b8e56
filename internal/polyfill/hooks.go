package polyfill

// catalog is the fixed set of platform interface points with known
// replacements. Each module reproduces the hook's call contract using only
// fetch, localStorage, and other standard browser primitives.
var catalog = []Hook{
	{
		Symbol: "createClient",
		Path:   "src/lib/client.js",
		Content: `// Replacement for the platform SDK client factory.
// Talks to your own backend via fetch; set VITE_API_BASE_URL to point at it.
const baseURL = import.meta.env.VITE_API_BASE_URL || "/api";

async function request(path, options = {}) {
  const res = await fetch(baseURL + path, {
    headers: { "Content-Type": "application/json", ...(options.headers || {}) },
    ...options,
  });
  if (!res.ok) {
    throw new Error("request failed: " + res.status);
  }
  return res.status === 204 ? null : res.json();
}

export function createClient() {
  return {
    get: (path) => request(path),
    post: (path, body) => request(path, { method: "POST", body: JSON.stringify(body) }),
    put: (path, body) => request(path, { method: "PUT", body: JSON.stringify(body) }),
    delete: (path) => request(path, { method: "DELETE" }),
  };
}
`,
	},
	{
		Symbol: "useAuth",
		Path:   "src/lib/auth.js",
		Content: `// Replacement for the platform auth hook. Session state lives in
// localStorage; wire login/logout to your own auth endpoint.
const KEY = "app.session";

export function useAuth() {
  const raw = localStorage.getItem(KEY);
  const session = raw ? JSON.parse(raw) : null;
  return {
    user: session ? session.user : null,
    isAuthenticated: Boolean(session),
    login: async (credentials) => {
      const res = await fetch("/api/auth/login", {
        method: "POST",
        headers: { "Content-Type": "application/json" },
        body: JSON.stringify(credentials),
      });
      if (!res.ok) throw new Error("login failed");
      const next = await res.json();
      localStorage.setItem(KEY, JSON.stringify(next));
      return next.user;
    },
    logout: () => localStorage.removeItem(KEY),
  };
}
`,
	},
	{
		Symbol: "useEntity",
		Path:   "src/lib/entities.js",
		Content: `// Replacement for the platform entity hook: plain REST CRUD over fetch.
const baseURL = import.meta.env.VITE_API_BASE_URL || "/api";

export function useEntity(name) {
  const root = baseURL + "/" + name;
  const json = (res) => {
    if (!res.ok) throw new Error(name + ": " + res.status);
    return res.json();
  };
  return {
    list: () => fetch(root).then(json),
    get: (id) => fetch(root + "/" + id).then(json),
    create: (data) =>
      fetch(root, {
        method: "POST",
        headers: { "Content-Type": "application/json" },
        body: JSON.stringify(data),
      }).then(json),
    update: (id, data) =>
      fetch(root + "/" + id, {
        method: "PUT",
        headers: { "Content-Type": "application/json" },
        body: JSON.stringify(data),
      }).then(json),
    remove: (id) => fetch(root + "/" + id, { method: "DELETE" }),
  };
}
`,
	},
	{
		Symbol: "invokeFunction",
		Path:   "src/lib/functions.js",
		Content: `// Replacement for the platform serverless-function bridge.
const baseURL = import.meta.env.VITE_FUNCTIONS_URL || "/api/functions";

export async function invokeFunction(name, payload) {
  const res = await fetch(baseURL + "/" + name, {
    method: "POST",
    headers: { "Content-Type": "application/json" },
    body: JSON.stringify(payload || {}),
  });
  if (!res.ok) {
    throw new Error("function " + name + " failed: " + res.status);
  }
  return res.json();
}
`,
	},
	{
		Symbol: "uploadFile",
		Path:   "src/lib/storage.js",
		Content: `// Replacement for the platform file-storage helper.
const baseURL = import.meta.env.VITE_API_BASE_URL || "/api";

export async function uploadFile(file, path) {
  const form = new FormData();
  form.append("file", file);
  if (path) form.append("path", path);
  const res = await fetch(baseURL + "/files", { method: "POST", body: form });
  if (!res.ok) throw new Error("upload failed: " + res.status);
  return res.json();
}

export function fileURL(id) {
  return baseURL + "/files/" + encodeURIComponent(id);
}
`,
	},
}
