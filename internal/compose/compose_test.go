package compose

import "testing"

func TestValidServiceName(t *testing.T) {
	t.Parallel()
	ok := []string{"", "synapse", "element-web", "db_1", "Postgres-14"}
	for _, s := range ok {
		if err := ValidServiceName(s); err != nil {
			t.Fatalf("ValidServiceName(%q): %v", s, err)
		}
	}
	bad := []string{"synapse; rm -rf /", "a b", "$(boom)", "svc|cat", "../other"}
	for _, s := range bad {
		if err := ValidServiceName(s); err == nil {
			t.Fatalf("ValidServiceName(%q) accepted", s)
		}
	}
}

func TestParseStatuses(t *testing.T) {
	t.Parallel()
	out := `
{"Service":"synapse","State":"running","Status":"Up 3 days"}
{"Name":"matrix-db-1","State":"running","Status":"Up 3 days (healthy)"}
garbage line
{"Service":"element","State":"exited","Status":"Exited (0) 2 hours ago"}
`
	statuses := parseStatuses(out)
	if len(statuses) != 3 {
		t.Fatalf("expected 3 services, got %d: %+v", len(statuses), statuses)
	}
	if statuses[0].Name != "synapse" || statuses[0].State != "running" {
		t.Fatalf("unexpected first row: %+v", statuses[0])
	}
	// Name falls back to the container name when Service is absent.
	if statuses[1].Name != "matrix-db-1" {
		t.Fatalf("unexpected fallback name: %+v", statuses[1])
	}
	if statuses[2].State != "exited" {
		t.Fatalf("unexpected last row: %+v", statuses[2])
	}
}

func TestParseStatusesEmpty(t *testing.T) {
	t.Parallel()
	if got := parseStatuses(""); len(got) != 0 {
		t.Fatalf("expected empty, got %+v", got)
	}
}

func TestClampLogLines(t *testing.T) {
	t.Parallel()
	tests := []struct{ in, want int }{
		{0, DefaultLogLines},
		{-5, DefaultLogLines},
		{1, 1},
		{500, 500},
		{MaxLogLines, MaxLogLines},
		{MaxLogLines + 1, DefaultLogLines},
	}
	for _, tt := range tests {
		if got := ClampLogLines(tt.in); got != tt.want {
			t.Fatalf("ClampLogLines(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestCombinedOutput(t *testing.T) {
	t.Parallel()
	r := Result{Stdout: "pulled\n", Stderr: "warning: foo\n"}
	if got := r.Combined(); got != "pulled\n\nwarning: foo" {
		t.Fatalf("Combined() = %q", got)
	}
}
