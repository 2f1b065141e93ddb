package mktorrent

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/anacrolix/torrent/metainfo"
	jbencode "github.com/jackpal/bencode-go"
)

func sampleMetaInfo() *MetaInfo {
	return &MetaInfo{
		Announce:     "http://t/a",
		CreationDate: 1,
		CreatedBy:    "x",
		Info: InfoDictionary{
			PieceLength: 32768,
			Length:      3,
			Name:        "f",
			MD5Sum:      "abc",
			Pieces:      []byte("01234567890123456789"),
		},
	}
}

func Test_Encode_golden(t *testing.T) {
	tests := []struct {
		name   string
		modify func(mi *MetaInfo)
		want   string
	}{
		{
			"minimal",
			func(mi *MetaInfo) {},
			"d8:announce10:http://t/a10:created by1:x13:creation datei1e" +
				"4:infod6:lengthi3e6:md5sum3:abc4:name1:f12:piece lengthi32768e6:pieces20:01234567890123456789ee",
		},
		{
			"comment and announce list",
			func(mi *MetaInfo) {
				mi.Comment = "hi"
				mi.AnnounceList = [][]string{{"http://t/a"}, {"udp://u"}}
			},
			"d8:announce10:http://t/a13:announce-listll10:http://t/ael7:udp://uee7:comment2:hi" +
				"10:created by1:x13:creation datei1e" +
				"4:infod6:lengthi3e6:md5sum3:abc4:name1:f12:piece lengthi32768e6:pieces20:01234567890123456789ee",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mi := sampleMetaInfo()
			tt.modify(mi)
			got, err := Encode(mi)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Encode() =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func Test_Encode_roundTrip(t *testing.T) {
	content := bytes.Repeat([]byte{'e', ':', 'd', 0, 'i'}, 50000)
	path := writeTemp(t, content)
	req, _ := NewBuildRequest(path, []string{"http://a/announce", "http://b/announce"}, "round trip")
	mi, err := fixedBuilder(1406000000).Build(req)
	if err != nil {
		t.Fatal(err)
	}
	data, err := Encode(mi)
	if err != nil {
		t.Fatal(err)
	}

	// independent decoder
	decoded, err := jbencode.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("jackpal decode error = %v", err)
	}
	want := map[string]interface{}{
		"announce": "http://a/announce",
		"announce-list": []interface{}{
			[]interface{}{"http://a/announce"},
			[]interface{}{"http://b/announce"},
		},
		"comment":       "round trip",
		"created by":    DefaultCreatedBy,
		"creation date": int64(1406000000),
		"info": map[string]interface{}{
			"piece length": mi.Info.PieceLength,
			"length":       int64(len(content)),
			"name":         path,
			"md5sum":       MD5Hex(content),
			"pieces":       string(mi.Info.Pieces),
		},
	}
	if !reflect.DeepEqual(decoded, want) {
		t.Errorf("decoded = %#v\nwant %#v", decoded, want)
	}

	// our own decoder
	back, err := Load(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(back, mi) {
		t.Errorf("Load() = %#v, want %#v", back, mi)
	}

	// and a real client's view of it
	ami, err := metainfo.Load(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("metainfo.Load() error = %v", err)
	}
	info, err := ami.UnmarshalInfo()
	if err != nil {
		t.Fatal(err)
	}
	if info.Length != mi.Info.Length || info.PieceLength != mi.Info.PieceLength || info.NumPieces() != mi.Info.NumPieces() {
		t.Errorf("metainfo.Info = %d/%d/%d", info.Length, info.PieceLength, info.NumPieces())
	}
	ih, err := mi.InfoHash()
	if err != nil {
		t.Fatal(err)
	}
	if got := ami.HashInfoBytes().HexString(); got != ih {
		t.Errorf("InfoHash() = %s, client computed %s", ih, got)
	}
}

func Test_CheckCanonical(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"int", "i42e", nil},
		{"zero", "i0e", nil},
		{"negative", "i-3e", nil},
		{"string with binary", "3:e\x00d", nil},
		{"nested", "d1:ad1:xi1e1:yi2ee1:bl1:ci0eee", nil},
		{"empty dict", "de", nil},
		{"unsorted", "d1:bi1e1:ai2ee", ErrKeyOrder},
		{"unsorted nested", "d1:ad1:yi1e1:xi2eee", ErrKeyOrder},
		{"duplicate", "d1:ai1e1:ai2ee", ErrKeyOrder},
		{"prefix sorts first", "d2:aai1e1:ai2ee", ErrKeyOrder},
		{"leading zero", "i03e", ErrMalformed},
		{"negative zero", "i-0e", ErrMalformed},
		{"trailing", "i1ei2e", ErrMalformed},
		{"short string", "5:abc", ErrMalformed},
		{"unterminated", "l1:a", ErrMalformed},
		{"non-string key", "di1ei2ee", ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckCanonical([]byte(tt.data))
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("CheckCanonical(%q) error = %v", tt.data, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) || !IsEncoding(err) {
				t.Errorf("CheckCanonical(%q) error = %v, want %v", tt.data, err, tt.wantErr)
			}
		})
	}
}

func Test_WriteFile_unwritable(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "missing-dir", "out.torrent")
	if err := WriteFile([]byte("de"), dest); !IsIO(err) {
		t.Errorf("WriteFile() error = %v, want IO error", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Errorf("dest exists after failed write")
	}
}

func Test_LoadFile(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "a.torrent")
	data, _ := Encode(sampleMetaInfo())
	if err := WriteFile(data, dest); err != nil {
		t.Fatal(err)
	}
	mi, err := LoadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(mi, sampleMetaInfo()) {
		t.Errorf("LoadFile() = %#v", mi)
	}
	if _, err := LoadFile(dest + ".nope"); !IsIO(err) {
		t.Errorf("LoadFile() on missing file error = %v", err)
	}
}
