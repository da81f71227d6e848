package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

// extractDOCXText 解包DOCX（ZIP容器）并拼接 word/document.xml 中的文本节点
// 段落结束补换行，保持简历的行结构
func extractDOCXText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("打开 DOCX 容器失败: %w", err)
	}

	var docEntry *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docEntry = f
			break
		}
	}
	if docEntry == nil {
		return "", fmt.Errorf("DOCX 容器中缺少 word/document.xml")
	}

	rc, err := docEntry.Open()
	if err != nil {
		return "", fmt.Errorf("打开 word/document.xml 失败: %w", err)
	}
	defer rc.Close()

	return decodeWordprocessingXML(rc)
}

// decodeWordprocessingXML 流式遍历XML，收集 w:t 文本节点
// w:p（段落）与 w:br（换行）映射为换行符，w:tab 映射为制表符
func decodeWordprocessingXML(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)

	var sb strings.Builder
	inTextNode := false

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("解析 XML 失败: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inTextNode = true
			case "br":
				sb.WriteByte('\n')
			case "tab":
				sb.WriteByte('\t')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inTextNode = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inTextNode {
				sb.Write(t)
			}
		}
	}

	return sb.String(), nil
}

// salvageBinaryText 从旧版二进制文档中打捞可打印文本
// 按连续可打印字符片段收集，丢弃过短的噪声片段
// 这是有意为之的粗糙近似，结果必须标记为低置信度
func salvageBinaryText(data []byte) string {
	const minRunLength = 4 // 低于该长度的片段多为二进制噪声

	var sb strings.Builder
	var run []rune

	flush := func() {
		if len(run) >= minRunLength {
			sb.WriteString(string(run))
			sb.WriteByte('\n')
		}
		run = run[:0]
	}

	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			flush()
			i++
			continue
		}
		if unicode.IsPrint(r) || r == '\t' {
			run = append(run, r)
		} else {
			flush()
		}
		i += size
	}
	flush()

	return sb.String()
}
