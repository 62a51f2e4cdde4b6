// Package memesync 把内容目录中的markdown文件解析为表情包并写入数据库。
package memesync

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"gopkg.in/yaml.v3"
)

// ErrMissingCover 表示文件中找不到封面图片
var ErrMissingCover = errors.New("缺少cover图片")

var imagePattern = regexp.MustCompile(`!\[[^\]]*\]\(([^)]+)\)`)

// Document 是从一个markdown文件中解析出的表情包
type Document struct {
	UID         string
	Name        string
	Cover       string
	Description string
}

// frontMatter 是文件开头可选的YAML块，出现的字段覆盖正文解析结果
type frontMatter struct {
	UID         string `yaml:"uid"`
	Name        string `yaml:"name"`
	Cover       string `yaml:"cover"`
	Description string `yaml:"description"`
}

// splitFrontMatter 拆出以 --- 开头和结尾的YAML块
func splitFrontMatter(content string) (*frontMatter, string, error) {
	if !strings.HasPrefix(content, "---\n") && !strings.HasPrefix(content, "---\r\n") {
		return nil, content, nil
	}
	lines := strings.SplitAfter(content, "\n")
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			var fm frontMatter
			if err := yaml.Unmarshal([]byte(strings.Join(lines[1:i], "")), &fm); err != nil {
				return nil, "", fmt.Errorf("无法解析front matter: %w", err)
			}
			return &fm, strings.Join(lines[i+1:], ""), nil
		}
	}
	// 没有结束标记时当作普通正文
	return nil, content, nil
}

// section 返回 "## title" 与下一个二级标题之间的行
func section(lines []string, title string) ([]string, bool) {
	start := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == "## "+title {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return nil, false
	}
	end := len(lines)
	for i := start; i < len(lines); i++ {
		if strings.HasPrefix(lines[i], "## ") {
			end = i
			break
		}
	}
	return lines[start:end], true
}

// coverFrom 取封面章节中第一个markdown图片，没有时再把章节当作HTML找<img src>
func coverFrom(lines []string) string {
	for _, line := range lines {
		if m := imagePattern.FindStringSubmatch(line); m != nil {
			// ![alt](url "title") 只保留url
			if fields := strings.Fields(m[1]); len(fields) > 0 {
				return fields[0]
			}
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBufferString(strings.Join(lines, "\n")))
	if err != nil {
		return ""
	}
	src, _ := doc.Find("img[src]").First().Attr("src")
	return strings.TrimSpace(src)
}

// Parse 解析单个markdown文件。
// uid和fallbackName来自文件路径，front matter中的同名字段优先。
func Parse(content []byte, uid, fallbackName string) (*Document, error) {
	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	fm, body, err := splitFrontMatter(text)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(body, "\n")
	doc := &Document{UID: uid, Name: fallbackName}

	for _, line := range lines {
		if strings.HasPrefix(line, "# ") {
			doc.Name = strings.TrimSpace(strings.TrimPrefix(line, "# "))
			break
		}
	}
	if cover, ok := section(lines, "Cover"); ok {
		doc.Cover = coverFrom(cover)
	}
	if desc, ok := section(lines, "Description"); ok {
		doc.Description = strings.TrimSpace(strings.Join(desc, "\n"))
	}

	if fm != nil {
		if fm.UID != "" {
			doc.UID = fm.UID
		}
		if fm.Name != "" {
			doc.Name = fm.Name
		}
		if fm.Cover != "" {
			doc.Cover = fm.Cover
		}
		if fm.Description != "" {
			doc.Description = strings.TrimSpace(fm.Description)
		}
	}

	if doc.Cover == "" {
		return doc, fmt.Errorf("%s: %w", doc.UID, ErrMissingCover)
	}
	return doc, nil
}
