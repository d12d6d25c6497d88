package conversation

import "testing"

func TestParseRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		label   string
		want    Role
		wantErr bool
	}{
		{label: "user", want: RoleUser},
		{label: "ASSISTANT", want: RoleAssistant},
		{label: " system ", want: RoleSystem},
		{label: "model", wantErr: true},
		{label: "", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.label, func(t *testing.T) {
			t.Parallel()
			got, err := ParseRole(tt.label)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.label)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}
