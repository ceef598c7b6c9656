package catalog

import "testing"

func TestCleanBaseName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain source", in: "movie.mp4", want: "movie"},
		{name: "dash tag", in: "movie-720p.mkv", want: "movie"},
		{name: "underscore tag", in: "movie_1080p.avi", want: "movie"},
		{name: "dots in base", in: "my.home.video.mov", want: "my.home.video"},
		{name: "no extension", in: "clip", want: "clip"},
		{name: "tag mid name", in: "show-480p-extended.mp4", want: "show-extended"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := CleanBaseName(tc.in); got != tc.want {
				t.Errorf("CleanBaseName(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestIsSource(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"movie.mp4":           true,
		"movie.MOV":           true,
		"movie-720p.mp4":      false,
		"movie_240p.avi":      false,
		"movie-720p.mov":      true,
		"movie-720p.mp4.part": false,
		".hidden.mp4":         false,
		"notes.txt":           false,
	}
	for name, want := range tests {
		if got := IsSource(name); got != want {
			t.Errorf("IsSource(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestVariantName(t *testing.T) {
	if got := VariantName("movie", Res1080p, FormatAVI); got != "movie-1080p.avi" {
		t.Errorf("VariantName = %q", got)
	}
}

func TestResolution_Scale(t *testing.T) {
	t.Parallel()

	tests := map[Resolution]string{
		Res240p:          "426:240",
		Res360p:          "640:360",
		Res480p:          "854:480",
		Res720p:          "1280:720",
		Res1080p:         "1920:1080",
		Resolution("4k"): "854:480",
		ResOriginal:      "854:480",
	}
	for res, want := range tests {
		if got := res.Scale(); got != want {
			t.Errorf("%s.Scale() = %q, want %q", res, got, want)
		}
	}
}

func TestParseAsset(t *testing.T) {
	a := ParseAsset("/media", "movie-720p.mkv")
	if a.Base != "movie" || a.Resolution != Res720p || a.Format != FormatMKV || a.Path != "/media/movie-720p.mkv" || !a.Derived() {
		t.Errorf("unexpected asset %+v", a)
	}

	src := ParseAsset("/media", "movie.mp4")
	if src.Resolution != ResOriginal || src.Derived() {
		t.Errorf("source parsed as %+v", src)
	}
}

func TestFormat_Muxer(t *testing.T) {
	if FormatMKV.Muxer() != "matroska" || FormatMP4.Muxer() != "mp4" || FormatAVI.Muxer() != "avi" {
		t.Error("unexpected muxer mapping")
	}
}
