package export

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/fumiama/go-docx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/zhouzirui/compeq-chat/backend/internal/model/chat"
)

var sample = Transcript{
	User:    "alice",
	Session: "工作",
	Turns: []chat.Turn{
		{Question: "hi", Answer: "hello"},
		{Question: `say "quote"` + "\tand\\slash", Answer: "line1\nline2 <b>&"},
	},
}

func render(t *testing.T, format string, tr Transcript) []byte {
	t.Helper()
	e, err := NewExporter(format)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, e.Export(tr, &buf))
	return buf.Bytes()
}

func TestText(t *testing.T) {
	got := string(render(t, "txt", sample))
	assert.Equal(t, "你：hi\nGPT：hello\n\n你：say \"quote\"\tand\\slash\nGPT：line1\nline2 <b>&", got)
}

func TestJSONEnvelopeSurvivesSpecialCharacters(t *testing.T) {
	got := render(t, "json", sample)

	require.True(t, gjson.ValidBytes(got), string(got))
	assert.Equal(t, Text(sample.Turns), gjson.GetBytes(got, "response").String())
}

func TestJSONEmptyTranscript(t *testing.T) {
	assert.Equal(t, `{"response":""}`, string(render(t, "json", Transcript{})))
}

func TestDocx(t *testing.T) {
	data := render(t, "docx", sample)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	names := map[string]*zip.File{}
	for _, f := range zr.File {
		names[f.Name] = f
	}
	for _, want := range []string{"[Content_Types].xml", "_rels/.rels", "word/document.xml", "word/styles.xml"} {
		assert.Contains(t, names, want)
	}

	rc, err := names["word/document.xml"].Open()
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)

	doc := string(body)
	assert.Contains(t, doc, "GPT 回覆內容")
	assert.Contains(t, doc, "line2 &lt;b&gt;&amp;")
	assert.Contains(t, doc, "你：hi")
}

func TestDocxParagraphsReadBack(t *testing.T) {
	data := render(t, "docx", sample)

	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	var paragraphs []string
	for _, item := range doc.Document.Body.Items {
		if p, ok := item.(*docx.Paragraph); ok {
			paragraphs = append(paragraphs, p.String())
		}
	}
	lines := strings.Split(Text(sample.Turns), "\n")
	require.Len(t, paragraphs, len(lines)+1)
	assert.Equal(t, "GPT 回覆內容", paragraphs[0])
	assert.Equal(t, lines, paragraphs[1:])
}

func TestXlsx(t *testing.T) {
	data := render(t, "xlsx", sample)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"ChatHistory"}, f.GetSheetList())
	rows, err := f.GetRows("ChatHistory")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"提問", "回覆"}, rows[0])
	assert.Equal(t, []string{"hi", "hello"}, rows[1])
	assert.Equal(t, "line1\nline2 <b>&", rows[2][1])
}

func TestYAML(t *testing.T) {
	var decoded Transcript
	require.NoError(t, yaml.Unmarshal(render(t, "yaml", sample), &decoded))
	assert.Equal(t, sample, decoded)
}

func TestMarkdown(t *testing.T) {
	tr := Transcript{Session: "s", Turns: []chat.Turn{{Question: "q", Answer: "boom", Failed: true}}}
	got := string(render(t, "md", tr))
	assert.Equal(t, "# s\n\n## 1. 你\n\nq\n\n## GPT (失敗)\n\nboom\n", got)
}

func TestNewExporter(t *testing.T) {
	for _, f := range Formats {
		e, err := NewExporter(f)
		require.NoError(t, err, f)
		assert.Equal(t, f, e.Extension())
		assert.NotEmpty(t, e.ContentType())
	}

	_, err := NewExporter("pdf")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	e, _ := NewExporter("XLSX")
	assert.Equal(t, "chat_history.xlsx", FileName(e))
	e, _ = NewExporter("txt")
	assert.Equal(t, "response.txt", FileName(e))
	assert.True(t, strings.HasPrefix(e.ContentType(), "text/plain"))
}
