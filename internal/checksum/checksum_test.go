package checksum

import "testing"

func TestSum_Stable(t *testing.T) {
	if Sum("hello") != Sum("hello") {
		t.Fatal("same input should hash the same")
	}
	if Sum("hello") == Sum("hello!") {
		t.Fatal("different input should hash differently")
	}
}
