package gcs

import (
	"testing"

	"personal-connect/internal/logger"
)

func TestPublicURL(t *testing.T) {
	tests := []struct {
		name       string
		publicBase string
		want       string
	}{
		{
			name: "firebase download url",
			want: "https://firebasestorage.googleapis.com/v0/b/app.appspot.com/o/profilePictures%2Fu1?alt=media",
		},
		{
			name:       "cdn base",
			publicBase: "https://cdn.example.com/",
			want:       "https://cdn.example.com/profilePictures/u1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewWithClient(nil, "app.appspot.com", tt.publicBase, logger.Nop()).(*blobStore)
			if got := b.PublicURL("profilePictures/u1"); got != tt.want {
				t.Errorf("PublicURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
