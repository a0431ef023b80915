package cocina

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sdr-go/internal/grouping"
	"sdr-go/internal/sdr"
)

const (
	md5Hex  = "5d41402abc4b2a76b9719d911017c592"
	sha1Hex = "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d"
)

func boolPtr(b bool) *bool { return &b }

func upload(name string) sdr.UploadResponse {
	return sdr.UploadResponse{Filename: name, SignedID: "signed-" + name, ContentType: "text/plain"}
}

func baseAttrs() sdr.ObjectAttributes {
	return sdr.ObjectAttributes{
		Type:        "object",
		AdminPolicy: "druid:bc123df4567",
		SourceID:    "sul:1234",
	}
}

// decode builds a document and returns its JSON form as generic maps.
func decode(t *testing.T, doc sdr.Document) map[string]any {
	t.Helper()
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestBuilder_Build_RootDocument(t *testing.T) {
	attrs := baseAttrs()
	attrs.Label = "My object"
	attrs.View = "world"
	attrs.Download = "stanford"
	attrs.Copyright = "(c) 2024"
	attrs.UseStatement = "Use freely"
	attrs.Collection = "druid:gh123jk4567"
	attrs.Catkey = "12345"
	attrs.ViewingDirection = "right-to-left"
	attrs.Embargo = &sdr.Embargo{ReleaseDate: "2030-01-01", View: "world", Download: "world"}

	doc, err := NewBuilder().Build(attrs, [][]sdr.UploadResponse{{upload("a.txt")}}, nil, grouping.FileStrategy{})
	require.NoError(t, err)

	out := decode(t, doc)
	assert.Equal(t, "https://cocina.sul.stanford.edu/models/object", out["type"])
	assert.Equal(t, "My object", out["label"])
	assert.EqualValues(t, 1, out["version"])

	access := out["access"].(map[string]any)
	assert.Equal(t, "world", access["view"])
	assert.Equal(t, "stanford", access["download"])
	assert.Equal(t, "(c) 2024", access["copyright"])
	assert.Equal(t, "Use freely", access["useAndReproductionStatement"])
	assert.Equal(t, map[string]any{"releaseDate": "2030-01-01", "view": "world", "download": "world"}, access["embargo"])

	assert.Equal(t, map[string]any{"hasAdminPolicy": "druid:bc123df4567"}, out["administrative"])

	ident := out["identification"].(map[string]any)
	assert.Equal(t, "sul:1234", ident["sourceId"])
	assert.Equal(t, []any{map[string]any{"catalog": "symphony", "catalogRecordId": "12345", "refresh": true}}, ident["catalogLinks"])

	structural := out["structural"].(map[string]any)
	assert.Equal(t, []any{"druid:gh123jk4567"}, structural["isMemberOf"])
	assert.Equal(t, []any{map[string]any{"viewingDirection": "right-to-left"}}, structural["hasMemberOrders"])
}

func TestBuilder_Build_Defaults(t *testing.T) {
	doc, err := NewBuilder().Build(baseAttrs(), [][]sdr.UploadResponse{{upload("a.txt")}}, nil, grouping.FileStrategy{})
	require.NoError(t, err)

	out := decode(t, doc)
	assert.Equal(t, AutoLabel, out["label"])
	assert.NotContains(t, out, "description")

	access := out["access"].(map[string]any)
	assert.Equal(t, "dark", access["view"])
	assert.Equal(t, "none", access["download"])
	assert.NotContains(t, access, "embargo")

	ident := out["identification"].(map[string]any)
	assert.NotContains(t, ident, "catalogLinks", "catalog links are omitted when no catalog ids are given")

	structural := out["structural"].(map[string]any)
	assert.NotContains(t, structural, "isMemberOf")
	assert.NotContains(t, structural, "hasMemberOrders")
}

func TestBuilder_Build_FileSetLabels(t *testing.T) {
	groups := [][]sdr.UploadResponse{{upload("p1.tif")}, {upload("p2.tif")}}

	tests := []struct {
		objectType string
		want       []string
	}{
		{"book", []string{"Page 1", "Page 2"}},
		{"object", []string{"Object 1", "Object 2"}},
		{"image", []string{"Object 1", "Object 2"}},
	}
	for _, tt := range tests {
		t.Run(tt.objectType, func(t *testing.T) {
			attrs := baseAttrs()
			attrs.Type = tt.objectType
			doc, err := NewBuilder().Build(attrs, groups, nil, grouping.FileStrategy{})
			require.NoError(t, err)

			dro := doc.(*RequestDRO)
			var labels []string
			for _, fs := range dro.Structural.Contains {
				labels = append(labels, fs.Label)
				assert.Equal(t, grouping.FileResourceType, fs.Type)
			}
			assert.Equal(t, tt.want, labels)
		})
	}
}

func TestBuilder_Build_FileNodes(t *testing.T) {
	metadata := map[string]sdr.FileMetadata{
		"pages/p1.tif": {View: "world", Download: "world", MimeType: "image/tiff", MD5: md5Hex, SHA1: sha1Hex, Use: "transcription"},
		"pages/p1.txt": {Shelve: boolPtr(false)},
	}
	groups := [][]sdr.UploadResponse{{upload("pages/p1.tif"), upload("pages/p1.txt")}}

	doc, err := NewBuilder().Build(baseAttrs(), groups, metadata, grouping.ImageStrategy{})
	require.NoError(t, err)
	dro := doc.(*RequestDRO)

	require.Len(t, dro.Structural.Contains, 1)
	assert.Equal(t, grouping.ImageResourceType, dro.Structural.Contains[0].Type)

	files := dro.Structural.Contains[0].Structural.Contains
	require.Len(t, files, 2)

	tif := files[0]
	assert.Equal(t, FileModelType, tif.Type)
	assert.Equal(t, "signed-pages/p1.tif", tif.ExternalIdentifier)
	assert.Equal(t, "p1.tif", tif.Label)
	assert.Equal(t, "pages/p1.tif", tif.Filename)
	assert.Equal(t, "image/tiff", tif.HasMimeType)
	assert.Equal(t, "transcription", tif.Use)
	assert.Equal(t, []MessageDigest{{Type: "md5", Digest: md5Hex}, {Type: "sha1", Digest: sha1Hex}}, tif.HasMessageDigests)
	assert.Equal(t, FileAccess{View: "world", Download: "world"}, tif.Access)
	assert.Equal(t, FileAdministrative{Publish: true, SDRPreserve: true, Shelve: true}, tif.Administrative)

	txt := files[1]
	assert.Empty(t, txt.HasMessageDigests)
	assert.Equal(t, FileAccess{View: "dark", Download: "none"}, txt.Access)
	assert.Equal(t, FileAdministrative{Publish: false, SDRPreserve: true, Shelve: false}, txt.Administrative)
}

func TestBuilder_Build_DarkFilesAreNeverShelvedOrPublished(t *testing.T) {
	metadata := map[string]sdr.FileMetadata{
		"a.txt": {View: "dark", Shelve: boolPtr(true), Publish: boolPtr(true), Preserve: boolPtr(false)},
	}
	doc, err := NewBuilder().Build(baseAttrs(), [][]sdr.UploadResponse{{upload("a.txt")}}, metadata, grouping.FileStrategy{})
	require.NoError(t, err)

	admin := doc.(*RequestDRO).Structural.Contains[0].Structural.Contains[0].Administrative
	assert.False(t, admin.Shelve)
	assert.False(t, admin.Publish)
	assert.False(t, admin.SDRPreserve)
}

func TestBuilder_Build_IsDeterministic(t *testing.T) {
	groups := [][]sdr.UploadResponse{{upload("a.tif"), upload("a.xml")}, {upload("b.tif")}}
	b := NewBuilder()

	first, err := b.Build(baseAttrs(), groups, nil, grouping.FileStrategy{})
	require.NoError(t, err)
	second, err := b.Build(baseAttrs(), groups, nil, grouping.FileStrategy{})
	require.NoError(t, err)

	a, _ := json.Marshal(first)
	c, _ := json.Marshal(second)
	assert.JSONEq(t, string(a), string(c))
}

func TestBuilder_Build_RoundTripsGroupCount(t *testing.T) {
	for _, n := range []int{1, 2, 7} {
		groups := make([][]sdr.UploadResponse, 0, n)
		for i := 0; i < n; i++ {
			groups = append(groups, []sdr.UploadResponse{upload(strings.Repeat("f", i+1) + ".txt")})
		}

		doc, err := NewBuilder().Build(baseAttrs(), groups, nil, grouping.FileStrategy{})
		require.NoError(t, err)

		data, err := json.Marshal(doc)
		require.NoError(t, err)
		raw, err := ParseDocument(data)
		require.NoError(t, err)
		assert.Equal(t, n, raw.FileSetCount())
	}
}

func TestBuilder_Build_Validation(t *testing.T) {
	t.Run("missing admin policy", func(t *testing.T) {
		attrs := baseAttrs()
		attrs.AdminPolicy = ""
		_, err := NewBuilder().Build(attrs, [][]sdr.UploadResponse{{upload("a.txt")}}, nil, grouping.FileStrategy{})
		assert.ErrorContains(t, err, "HasAdminPolicy")
	})

	t.Run("unknown access view", func(t *testing.T) {
		attrs := baseAttrs()
		attrs.View = "everyone"
		_, err := NewBuilder().Build(attrs, [][]sdr.UploadResponse{{upload("a.txt")}}, nil, grouping.FileStrategy{})
		assert.Error(t, err)
	})
}

func TestRequestDRO_LinkFiles(t *testing.T) {
	doc, err := NewBuilder().Build(baseAttrs(), [][]sdr.UploadResponse{{upload("a.txt")}, {upload("b.txt")}}, nil, grouping.FileStrategy{})
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt", "b.txt"}, doc.Filenames())
	assert.Empty(t, doc.ExternalIdentifier())

	require.NoError(t, doc.LinkFiles(map[string]string{"a.txt": "new-a", "b.txt": "new-b"}))
	dro := doc.(*RequestDRO)
	assert.Equal(t, "new-a", dro.Structural.Contains[0].Structural.Contains[0].ExternalIdentifier)
	assert.Equal(t, "new-b", dro.Structural.Contains[1].Structural.Contains[0].ExternalIdentifier)

	assert.Error(t, doc.LinkFiles(map[string]string{"a.txt": "x"}))
}
