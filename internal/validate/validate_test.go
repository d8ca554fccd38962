package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convertdesk/backend/internal/models"
)

const maxUpload = int64(500) << 20 // 500 MiB

func file(name string, size int64) models.FileDescriptor {
	return models.FileDescriptor{Name: name, SizeBytes: size}
}

func TestCheckBatch(t *testing.T) {
	tests := []struct {
		name       string
		files      []models.FileDescriptor
		acceptSpec string
		wantCodes  []string
	}{
		{
			name:       "valid pdf batch",
			files:      []models.FileDescriptor{file("a.pdf", 10<<20), file("b.pdf", 10<<20), file("c.pdf", 10<<20)},
			acceptSpec: ".pdf",
			wantCodes:  nil,
		},
		{
			name:       "single oversize file",
			files:      []models.FileDescriptor{file("huge.pdf", 600<<20)},
			acceptSpec: ".pdf",
			wantCodes:  []string{CodeOversize},
		},
		{
			name:       "oversize rejects whole batch even with valid types",
			files:      []models.FileDescriptor{file("ok.pdf", 1 << 20), file("huge.pdf", 600 << 20)},
			acceptSpec: ".pdf",
			wantCodes:  []string{CodeOversize},
		},
		{
			name:       "unsupported extension",
			files:      []models.FileDescriptor{file("script.exe", 100)},
			acceptSpec: ".pdf,.jpg",
			wantCodes:  []string{CodeUnsupportedType},
		},
		{
			name:       "case-insensitive extension match",
			files:      []models.FileDescriptor{file("PHOTO.JPG", 100)},
			acceptSpec: ".jpg",
			wantCodes:  nil,
		},
		{
			name:       "both rules violated",
			files:      []models.FileDescriptor{file("huge.exe", 600 << 20)},
			acceptSpec: ".pdf",
			wantCodes:  []string{CodeOversize, CodeUnsupportedType},
		},
		{
			name:       "empty accept spec means no type restriction",
			files:      []models.FileDescriptor{file("anything.xyz", 100)},
			acceptSpec: "",
			wantCodes:  nil,
		},
		{
			name:       "wildcard accept spec means no type restriction",
			files:      []models.FileDescriptor{file("anything.xyz", 100)},
			acceptSpec: "*",
			wantCodes:  nil,
		},
		{
			name:       "file without extension fails restricted spec",
			files:      []models.FileDescriptor{file("README", 100)},
			acceptSpec: ".txt",
			wantCodes:  []string{CodeUnsupportedType},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckBatch(tt.files, tt.acceptSpec, maxUpload)

			var codes []string
			for _, v := range got {
				codes = append(codes, v.Code)
			}
			assert.Equal(t, tt.wantCodes, codes)
		})
	}
}

func TestCheckBatchIsPure(t *testing.T) {
	files := []models.FileDescriptor{file("a.exe", 600 << 20), file("b.pdf", 1)}

	first := CheckBatch(files, ".pdf", maxUpload)
	second := CheckBatch(files, ".pdf", maxUpload)

	assert.Equal(t, first, second)
	// Inputs are untouched.
	assert.Equal(t, "a.exe", files[0].Name)
	assert.Equal(t, int64(600)<<20, files[0].SizeBytes)
}

func TestCheckBatchAggregatesOffenders(t *testing.T) {
	files := []models.FileDescriptor{
		file("one.exe", 100),
		file("two.bat", 100),
		file("ok.pdf", 100),
	}

	got := CheckBatch(files, ".pdf", maxUpload)
	require.Len(t, got, 1)
	assert.Equal(t, CodeUnsupportedType, got[0].Code)
	assert.Contains(t, got[0].Message, "one.exe")
	assert.Contains(t, got[0].Message, "two.bat")
	assert.NotContains(t, got[0].Message, "ok.pdf")
}

func TestOversizeMessageNamesLimit(t *testing.T) {
	got := CheckBatch([]models.FileDescriptor{file("big.bin", 600 << 20)}, "", maxUpload)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Message, "500 MiB")
	assert.Contains(t, got[0].Message, "big.bin")
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "500 MiB", FormatSize(500<<20))
	assert.Equal(t, "2 GiB", FormatSize(2<<30))
	assert.Equal(t, "4 KiB", FormatSize(4<<10))
	assert.Equal(t, "123 bytes", FormatSize(123))
}
