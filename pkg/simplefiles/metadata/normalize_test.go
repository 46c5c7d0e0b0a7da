package metadata_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-files/pkg/simplefiles/metadata"
	"github.com/tendant/simple-files/pkg/simplefiles/multipart"
)

func field(name, value string) multipart.Part {
	return multipart.Part{Name: name, Data: []byte(value)}
}

func TestNormalize_FileAndFields(t *testing.T) {
	parts := []multipart.Part{
		{Name: "file", FileName: "report.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")},
		field("title", "Q3 Report"),
		field("pages", "42"),
		field("draft", "True"),
	}

	res := metadata.Normalize(parts)
	require.True(t, res.Valid())
	require.NotNil(t, res.File)
	assert.Equal(t, "report.pdf", res.File.FileName)
	assert.Equal(t, "application/pdf", res.File.ContentType)
	assert.Equal(t, []byte("%PDF-1.4"), res.File.Data)

	assert.Equal(t, []string{"title", "pages", "draft"}, res.Fields.Keys())

	title, _ := res.Fields.Get("title")
	s, ok := title.Str()
	assert.True(t, ok)
	assert.Equal(t, "Q3 Report", s)

	pages, _ := res.Fields.Get("pages")
	n, ok := pages.Number()
	assert.True(t, ok)
	assert.Equal(t, 42.0, n)

	draft, _ := res.Fields.Get("draft")
	b, ok := draft.Bool()
	assert.True(t, ok)
	assert.True(t, b)
}

func TestNormalize_FileDefaults(t *testing.T) {
	res := metadata.Normalize([]multipart.Part{{Name: "file", Data: []byte("x")}})
	require.NotNil(t, res.File)
	assert.Equal(t, metadata.DefaultFileName, res.File.FileName)
	assert.Equal(t, metadata.DefaultContentType, res.File.ContentType)
}

func TestNormalize_NoFile(t *testing.T) {
	res := metadata.Normalize([]multipart.Part{field("a", "1")})
	assert.Nil(t, res.File)
	assert.True(t, res.Valid())
	assert.Equal(t, 1, res.Fields.Len())
}

func TestNormalize_LastFileWins(t *testing.T) {
	res := metadata.Normalize([]multipart.Part{
		{Name: "file", FileName: "first.txt", Data: []byte("1")},
		{Name: "file", FileName: "second.txt", Data: []byte("2")},
	})
	require.NotNil(t, res.File)
	assert.Equal(t, "second.txt", res.File.FileName)
}

func TestNormalize_KeyCollision(t *testing.T) {
	res := metadata.Normalize([]multipart.Part{
		field("My-Key", "a"),
		field("other", "b"),
		field("my key", "c"),
	})
	require.True(t, res.Valid())
	assert.Equal(t, []string{"my_key", "other"}, res.Fields.Keys())

	v, ok := res.Fields.Get("my_key")
	require.True(t, ok)
	assert.Equal(t, "c", v.String())
}

func TestNormalize_EmptyValue(t *testing.T) {
	res := metadata.Normalize([]multipart.Part{
		field("blank", "   \r\n"),
		field("kept", "yes"),
	})
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "blank", res.Errors[0].Key)
	assert.Equal(t, "empty string value for key blank", res.Errors[0].Message)

	_, ok := res.Fields.Get("blank")
	assert.False(t, ok)
	_, ok = res.Fields.Get("kept")
	assert.True(t, ok)
}

func TestNormalize_SkipsEmptyPayloads(t *testing.T) {
	res := metadata.Normalize([]multipart.Part{{Name: "nothing"}})
	assert.True(t, res.Valid())
	assert.Equal(t, 0, res.Fields.Len())
}

func TestNormalize_FieldCap(t *testing.T) {
	build := func(n int) []multipart.Part {
		parts := make([]multipart.Part, 0, n)
		for i := 0; i < n; i++ {
			parts = append(parts, field(fmt.Sprintf("k%d", i), "v"))
		}
		return parts
	}

	t.Run("at limit", func(t *testing.T) {
		res := metadata.Normalize(build(metadata.MaxFields))
		assert.True(t, res.Valid())
		assert.Equal(t, metadata.MaxFields, res.Fields.Len())
	})

	t.Run("over limit", func(t *testing.T) {
		res := metadata.Normalize(build(metadata.MaxFields + 1))
		require.Len(t, res.Errors, 1)
		assert.Equal(t, "too many metadata fields (max 50)", res.Errors[0].Message)
		assert.Equal(t, metadata.MaxFields+1, res.Fields.Len())
	})

	t.Run("collisions count once", func(t *testing.T) {
		parts := build(metadata.MaxFields)
		parts = append(parts, field("K0", "again"))
		res := metadata.Normalize(parts)
		assert.True(t, res.Valid())
	})
}

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"title", "title"},
		{"Title", "title"},
		{"content-type", "content_type"},
		{"a b.c", "a_b_c"},
		{"UPPER_snake_9", "upper_snake_9"},
		{"café", "caf_"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, metadata.SanitizeKey(tt.in))
		})
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		kind    metadata.Kind
		want    any
		wantErr string
	}{
		{name: "integer", input: "42", kind: metadata.KindNumber, want: 42.0},
		{name: "decimal", input: "3.25", kind: metadata.KindNumber, want: 3.25},
		{name: "padded integer", input: "  7 \n", kind: metadata.KindNumber, want: 7.0},
		{name: "negative stays string", input: "-5", kind: metadata.KindString, want: "-5"},
		{name: "trailing dot stays string", input: "5.", kind: metadata.KindString, want: "5."},
		{name: "true mixed case", input: "True", kind: metadata.KindBool, want: true},
		{name: "false upper", input: "FALSE", kind: metadata.KindBool, want: false},
		{name: "string", input: "hello world", kind: metadata.KindString, want: "hello world"},
		{name: "empty", input: "", wantErr: "empty string value for key k"},
		{name: "whitespace", input: " \t ", wantErr: "empty string value for key k"},
		{name: "overflow", input: strings.Repeat("9", 400), wantErr: "non-finite number for key k"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, verr := metadata.ParseValue("k", []byte(tt.input))
			if tt.wantErr != "" {
				require.NotNil(t, verr)
				assert.Equal(t, tt.wantErr, verr.Message)
				assert.Equal(t, "k", verr.Key)
				return
			}
			require.Nil(t, verr)
			assert.Equal(t, tt.kind, v.Kind())
			assert.Equal(t, tt.want, v.Interface())
		})
	}
}

func TestParseValue_InvalidUTF8(t *testing.T) {
	v, verr := metadata.ParseValue("k", []byte{'a', 0xff, 'b'})
	require.Nil(t, verr)
	assert.Equal(t, "a�b", v.String())
}
