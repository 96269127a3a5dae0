package ticket

import "testing"

func TestCombinedText(t *testing.T) {
	tests := []struct {
		name string
		in   Ticket
		want string
	}{
		{"both", Ticket{Title: " Login ", Description: "User signs in\n"}, "Login\nUser signs in"},
		{"no description", Ticket{Title: "Login", Description: "   "}, "Login"},
		{"no title", Ticket{Description: "User signs in"}, "User signs in"},
		{"empty", Ticket{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CombinedText(tt.in); got != tt.want {
				t.Errorf("CombinedText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseSource(t *testing.T) {
	for in, want := range map[string]Source{
		"jira":         SourceJira,
		"JIRA":         SourceJira,
		"azure_devops": SourceAzureDevOps,
		"ado":          SourceAzureDevOps,
		"gitlab":       SourceGitLab,
	} {
		got, err := ParseSource(in)
		if err != nil {
			t.Fatalf("ParseSource(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseSource(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := ParseSource("trello"); err == nil {
		t.Error("expected error for unknown source")
	}
}
