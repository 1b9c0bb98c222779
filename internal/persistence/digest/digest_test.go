package digest

import "testing"

func TestContainer_StableAndDistinct(t *testing.T) {
	a := Container([]byte("Octree\x02"))
	b := Container([]byte("Octree\x02"))
	c := Container([]byte("Octree\x01"))
	if a != b {
		t.Fatalf("digest not deterministic")
	}
	if a == c {
		t.Fatalf("different inputs share a digest")
	}
	if len(a.String()) != 64 || len(a.Short()) != 16 {
		t.Fatalf("String=%q Short=%q", a.String(), a.Short())
	}
	back, err := Parse(a.String())
	if err != nil || back != a {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := Parse("abcd"); err == nil {
		t.Fatalf("short digest accepted")
	}
}
