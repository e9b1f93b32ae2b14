package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/haivivi/audioprint/pkg/audio/chroma"
)

func writeString(t *testing.T, s FileStore, p, data string) {
	t.Helper()
	w, err := s.Write(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(w, data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func stores(t *testing.T) map[string]FileStore {
	t.Helper()
	local, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return map[string]FileStore{
		"local": local,
		"s3":    NewS3(newFakeS3(), "bkt", "audioprint"),
	}
}

func TestFileStore(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, err := s.Read(ctx, "missing"); !errors.Is(err, os.ErrNotExist) {
				t.Fatalf("Read missing = %v, want ErrNotExist", err)
			}
			if ok, err := s.Exists(ctx, "a/b"); err != nil || ok {
				t.Fatalf("Exists missing = %v, %v", ok, err)
			}

			writeString(t, s, "a/b", "long content")
			writeString(t, s, "a/b", "short")
			r, err := s.Read(ctx, "a/b")
			if err != nil {
				t.Fatal(err)
			}
			got, _ := io.ReadAll(r)
			r.Close()
			if string(got) != "short" {
				t.Fatalf("Read = %q, want %q", got, "short")
			}

			for range 2 {
				if err := s.Delete(ctx, "a/b"); err != nil {
					t.Fatalf("Delete: %v", err)
				}
			}
			if ok, _ := s.Exists(ctx, "a/b"); ok {
				t.Fatal("exists after Delete")
			}
		})
	}
}

func TestImageRoundTrip(t *testing.T) {
	img := chroma.NewFeatureImage(3)
	img.AddRow([]float64{0, 0.5, 1})
	img.AddRow([]float64{0.25, 0.75, 0.125})

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p, err := SaveImage(ctx, s, "track-1", img)
			if err != nil {
				t.Fatalf("SaveImage: %v", err)
			}
			if p != "images/track-1.fimg" {
				t.Errorf("path = %q", p)
			}
			got, err := LoadImage(ctx, s, "track-1")
			if err != nil {
				t.Fatalf("LoadImage: %v", err)
			}
			if !got.Equal(img) {
				t.Fatalf("LoadImage = %v, want %v", got.Rows(), img.Rows())
			}
			if _, err := LoadImage(ctx, s, "nope"); !errors.Is(err, os.ErrNotExist) {
				t.Fatalf("LoadImage missing = %v", err)
			}
		})
	}
}

func TestImagePathRejects(t *testing.T) {
	for _, id := range []string{"", ".", "..", "a/b", `a\b`} {
		if _, err := ImagePath(id); !errors.Is(err, ErrInvalidID) {
			t.Errorf("ImagePath(%q) = %v, want ErrInvalidID", id, err)
		}
	}
}

func TestOpen(t *testing.T) {
	isolateAWS(t)
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"local", Config{Dir: t.TempDir()}, false},
		{"local without dir", Config{Kind: "local"}, true},
		{"s3", Config{Kind: "s3", Bucket: "b", Endpoint: "http://localhost:9000"}, false},
		{"s3 without bucket", Config{Kind: "s3"}, true},
		{"unknown", Config{Kind: "ftp"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(context.Background(), tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// isolateAWS points the AWS configuration chain at empty files so tests do
// not pick up the developer's profile.
func isolateAWS(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("AWS_REGION", "")
	t.Setenv("AWS_DEFAULT_REGION", "")
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
}

func s3Options(t *testing.T, fs FileStore) s3.Options {
	t.Helper()
	st, ok := fs.(*S3Store)
	if !ok {
		t.Fatalf("store is %T, want *S3Store", fs)
	}
	c, ok := st.client.(*s3.Client)
	if !ok {
		t.Fatalf("client is %T, want *s3.Client", st.client)
	}
	return c.Options()
}

func TestOpenS3Config(t *testing.T) {
	ctx := context.Background()

	t.Run("default region", func(t *testing.T) {
		isolateAWS(t)
		fs, err := Open(ctx, Config{Kind: "s3", Bucket: "b"})
		if err != nil {
			t.Fatal(err)
		}
		o := s3Options(t, fs)
		if o.Region != DefaultRegion {
			t.Errorf("region = %q, want %q", o.Region, DefaultRegion)
		}
		if o.UsePathStyle || o.BaseEndpoint != nil {
			t.Errorf("endpoint options set without an endpoint: %+v", o.BaseEndpoint)
		}
	})

	t.Run("region from environment", func(t *testing.T) {
		isolateAWS(t)
		t.Setenv("AWS_REGION", "eu-west-1")
		fs, err := Open(ctx, Config{Kind: "s3", Bucket: "b"})
		if err != nil {
			t.Fatal(err)
		}
		if r := s3Options(t, fs).Region; r != "eu-west-1" {
			t.Errorf("region = %q", r)
		}
	})

	t.Run("region from shared profile", func(t *testing.T) {
		isolateAWS(t)
		cfgFile := filepath.Join(t.TempDir(), "config")
		if err := os.WriteFile(cfgFile, []byte("[profile prints]\nregion = ap-south-1\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		t.Setenv("AWS_CONFIG_FILE", cfgFile)
		t.Setenv("AWS_PROFILE", "prints")
		fs, err := Open(ctx, Config{Kind: "s3", Bucket: "b"})
		if err != nil {
			t.Fatal(err)
		}
		if r := s3Options(t, fs).Region; r != "ap-south-1" {
			t.Errorf("region = %q", r)
		}
	})

	t.Run("config region and endpoint win", func(t *testing.T) {
		isolateAWS(t)
		t.Setenv("AWS_REGION", "eu-west-1")
		fs, err := Open(ctx, Config{Kind: "s3", Bucket: "b", Region: "us-west-2", Endpoint: "http://localhost:9000"})
		if err != nil {
			t.Fatal(err)
		}
		o := s3Options(t, fs)
		if o.Region != "us-west-2" {
			t.Errorf("region = %q", o.Region)
		}
		if !o.UsePathStyle || o.BaseEndpoint == nil || *o.BaseEndpoint != "http://localhost:9000" {
			t.Errorf("endpoint = %v, path style = %v", o.BaseEndpoint, o.UsePathStyle)
		}
	})

	t.Run("missing profile", func(t *testing.T) {
		isolateAWS(t)
		t.Setenv("AWS_PROFILE", "nope")
		if _, err := Open(ctx, Config{Kind: "s3", Bucket: "b"}); err == nil {
			t.Fatal("Open with an unknown profile succeeded")
		}
	})
}
