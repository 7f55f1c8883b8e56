package retriever

import "testing"

func TestParseRepoRef(t *testing.T) {
	cases := []struct {
		raw    string
		branch string
		want   RepoRef
	}{
		{"owner/repo", "", RepoRef{Owner: "owner", Name: "repo"}},
		{"owner/repo", "dev", RepoRef{Owner: "owner", Name: "repo", Branch: "dev"}},
		{"https://github.com/owner/repo", "", RepoRef{Owner: "owner", Name: "repo"}},
		{"https://github.com/owner/repo.git", "", RepoRef{Owner: "owner", Name: "repo"}},
		{"https://github.com/owner/repo/tree/main", "", RepoRef{Owner: "owner", Name: "repo"}},
		{"git@github.com:owner/repo.git", "", RepoRef{Owner: "owner", Name: "repo"}},
		{"  owner/repo  ", " main ", RepoRef{Owner: "owner", Name: "repo", Branch: "main"}},
	}
	for _, tc := range cases {
		got, err := ParseRepoRef(tc.raw, tc.branch)
		if err != nil {
			t.Errorf("ParseRepoRef(%q): %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseRepoRef(%q) = %+v, want %+v", tc.raw, got, tc.want)
		}
	}
}

func TestParseRepoRefRejectsInvalid(t *testing.T) {
	for _, raw := range []string{
		"",
		"just-a-name",
		"https://gitlab.com/owner/repo",
		"git@github.com:broken",
		"/",
	} {
		if _, err := ParseRepoRef(raw, ""); err == nil {
			t.Errorf("ParseRepoRef(%q) succeeded, want error", raw)
		}
	}
}

func TestRepoRefString(t *testing.T) {
	if s := (RepoRef{Owner: "o", Name: "r"}).String(); s != "o/r" {
		t.Fatalf("String = %q", s)
	}
	if s := (RepoRef{Owner: "o", Name: "r", Branch: "b"}).String(); s != "o/r@b" {
		t.Fatalf("String = %q", s)
	}
}
