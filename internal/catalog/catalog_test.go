package catalog

import "testing"

func TestDefault(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	muscles := c.Muscles()
	if len(muscles) != 7 {
		t.Fatalf("muscles = %v", muscles)
	}
	for _, m := range muscles {
		if got := len(c.Exercises(m)); got != 3 {
			t.Errorf("%s has %d exercises", m, got)
		}
	}
	link, ok := c.VideoLink("supino reto")
	if !ok || link != "https://www.youtube.com/shorts/YM3eSbh4bNw" {
		t.Errorf("VideoLink() = %q, %v", link, ok)
	}
	if _, ok := c.VideoLink("Burpee"); ok {
		t.Error("unknown exercise found")
	}
}

func TestParseRejectsUnnamedMuscle(t *testing.T) {
	if _, err := Parse([]byte("- exercicios: []\n")); err == nil {
		t.Fatal("expected error")
	}
}
