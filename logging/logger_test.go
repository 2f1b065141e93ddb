package logging

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
)

func Test_Logger_filteredArg(t *testing.T) {
	type args struct {
		v []interface{}
	}
	tests := []struct {
		name string
		args args
		want []interface{}
	}{
		{"1", args{v: []interface{}{"123"}}, []interface{}{"123"}},
		{"2", args{v: []interface{}{"abcdef1234567890abcdef1234567890abcdef12"}}, []interface{}{"[abcdef..]"}},
		{"3", args{v: []interface{}{"abcdef1234567890abcdef1234567890abcdef12", "123"}}, []interface{}{"[abcdef..]", "123"}},
		{"4", args{v: []interface{}{"/some/path/that/is/exactly/forty/chars!!"}}, []interface{}{"/some/path/that/is/exactly/forty/chars!!"}},
		{"5", args{v: []interface{}{40, 2.5}}, []interface{}{40, 2.5}},
	}
	l := Discard()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := l.filteredArg(tt.args.v...); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Logger.filteredArg() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_ParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"notset", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"critical", LevelError, false},
		{"loud", LevelDebug, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseLevel() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ParseLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_Logger_levelsAndPrefix(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelInfo)
	l.SetFlags(0)
	child := l.Child("engine").Child("torrent")

	child.Debugf("hidden %d", 1)
	child.Printf("shown %s", "abcdef1234567890abcdef1234567890abcdef12")
	child.Errorf("failed")
	l.Println("root", 2)

	want := "[engine][torrent] shown [abcdef..]\n" +
		"[engine][torrent] [ERROR] failed\n" +
		"root 2\n"
	if got := buf.String(); got != want {
		t.Errorf("output =\n%s\nwant\n%s", got, want)
	}
	if strings.Contains(buf.String(), "hidden") {
		t.Errorf("debug line logged at info level")
	}
}
