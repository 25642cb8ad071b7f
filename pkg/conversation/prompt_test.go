package conversation

import (
	"strings"
	"testing"
)

func TestBuildPrompt(t *testing.T) {
	cases := []struct {
		name    string
		mode    Mode
		topic   string
		concept string
		want    []string
	}{
		{
			name:    "learn mode with concept",
			mode:    ModeLearn,
			topic:   "Data Structures",
			concept: "Binary Trees",
			want:    []string{"friendly AI tutor for Data Structures", "brief explanation of Binary Trees"},
		},
		{
			name:  "learn mode falls back to topic",
			mode:  ModeLearn,
			topic: "Operating Systems",
			want:  []string{"brief explanation of Operating Systems"},
		},
		{
			name:  "quiz mode",
			mode:  ModeQuiz,
			topic: "Computer Networks",
			want:  []string{"AI Quiz Master for Computer Networks", "summary of areas to improve"},
		},
		{
			name:  "scroll mode invites interruption",
			mode:  ModeScroll,
			topic: "Quantum Physics",
			want:  []string{"narrator for scroll content about Quantum Physics", "interrupt you at any time"},
		},
		{
			name:    "coding mode",
			mode:    ModeCoding,
			topic:   "Data Structures",
			concept: "Hash Tables",
			want:    []string{"Code Review Assistant for Data Structures - Hash Tables"},
		},
		{
			name:  "unknown mode defaults to tutor",
			mode:  Mode("bogus"),
			topic: "Algorithms",
			want:  []string{"friendly AI tutor for Algorithms"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := BuildPrompt(tc.mode, tc.topic, tc.concept)
			for _, fragment := range tc.want {
				if !strings.Contains(got, fragment) {
					t.Errorf("prompt missing %q:\n%s", fragment, got)
				}
			}
		})
	}
}
