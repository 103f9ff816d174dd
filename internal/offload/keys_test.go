package offload

import "testing"

func TestRemoteKeyIsDeterministic(t *testing.T) {
	b := KeyBuilder{Provider: "s3", Environment: "production", Prefix: "media"}

	key := b.RemoteKey("2024/06/photo.jpg")
	if key != "media/s3/production/2024/06/photo.jpg" {
		t.Fatalf("key = %q", key)
	}
	if again := b.RemoteKey("2024/06/photo.jpg"); again != key {
		t.Fatalf("second derivation %q differs from %q", again, key)
	}
}

func TestRemoteKeyNormalizesInput(t *testing.T) {
	b := KeyBuilder{Provider: "s3", Environment: "staging", Prefix: "media"}
	want := "media/s3/staging/2024/06/photo.jpg"

	for _, in := range []string{
		"/2024/06/photo.jpg",
		"2024//06/photo.jpg",
		`2024\06\photo.jpg`,
		"./2024/06/photo.jpg",
	} {
		if got := b.RemoteKey(in); got != want {
			t.Errorf("RemoteKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRelFromKeyInvertsRemoteKey(t *testing.T) {
	b := KeyBuilder{Provider: "s3", Environment: "production", Prefix: "media"}

	rel, ok := b.RelFromKey(b.RemoteKey("2024/06/photo.jpg"))
	if !ok || rel != "2024/06/photo.jpg" {
		t.Fatalf("RelFromKey = %q, %v", rel, ok)
	}

	if _, ok := b.RelFromKey("other/s3/production/2024/06/photo.jpg"); ok {
		t.Fatal("key outside the namespace must not invert")
	}
	if _, ok := b.RelFromKey(b.ScanPrefix()); ok {
		t.Fatal("bare prefix must not invert")
	}
}

func TestScanPrefixCoversDerivedKeys(t *testing.T) {
	b := KeyBuilder{Provider: "spaces", Environment: "staging", Prefix: "assets"}
	if got := b.ScanPrefix(); got != "assets/spaces/staging/" {
		t.Fatalf("prefix = %q", got)
	}
}
