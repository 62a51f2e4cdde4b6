package memesync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/SlpAus/meme-arena-backend/internal/meme"
	"github.com/SlpAus/meme-arena-backend/internal/platform/metadata"
	"gorm.io/gorm"
)

// Result 汇总一次同步的结果
type Result struct {
	Success int
	// Created 是Success中新建的表情包数，其余是已有表情包的内容更新
	Created int
	Failed  int
	Errors  []string
}

// Syncer 负责把markdown文件写入memes表
type Syncer struct {
	db   *gorm.DB
	repo *meme.Repository
	// root 是内容根目录，uid是文件相对它的路径
	root string
}

func NewSyncer(db *gorm.DB, root string) *Syncer {
	return &Syncer{db: db, repo: meme.NewRepository(db), root: root}
}

// CollectFiles 返回target本身（单个.md文件）或其下递归找到的所有.md文件
func CollectFiles(target string) ([]string, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("路径不存在: %w", err)
	}
	if !info.IsDir() {
		if strings.HasSuffix(target, ".md") {
			return []string{target}, nil
		}
		return nil, nil
	}

	var files []string
	err = filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".md") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("遍历目录失败: %w", err)
	}
	return files, nil
}

// uidFor 计算文件的uid：相对内容根目录的路径，去掉.md，统一使用正斜杠
func (s *Syncer) uidFor(file string) string {
	rel, err := filepath.Rel(s.root, file)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(file)
	}
	return strings.TrimSuffix(filepath.ToSlash(rel), ".md")
}

// SyncFile 解析并写入单个文件，created报告该uid此前是否不存在
func (s *Syncer) SyncFile(ctx context.Context, file string) (doc *Document, created bool, err error) {
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, false, fmt.Errorf("读取 %s 失败: %w", file, err)
	}

	fallbackName := strings.ReplaceAll(strings.TrimSuffix(filepath.Base(file), ".md"), "-", " ")
	doc, err = Parse(content, s.uidFor(file), fallbackName)
	if err != nil {
		return doc, false, err
	}

	_, err = s.repo.GetByUID(ctx, doc.UID)
	switch {
	case errors.Is(err, meme.ErrMemeNotFound):
		created = true
	case err != nil:
		return doc, false, err
	}

	if err := s.repo.Upsert(ctx, meme.NewMeme(doc.UID, doc.Name, doc.Cover, doc.Description)); err != nil {
		return doc, false, err
	}
	return doc, created, nil
}

// Run 同步target下的所有markdown文件，单个文件失败不会中断整体流程
func (s *Syncer) Run(ctx context.Context, target string) (*Result, error) {
	files, err := CollectFiles(target)
	if err != nil {
		return nil, err
	}
	slog.Info("找到markdown文件", slog.Int("count", len(files)), slog.String("target", target))

	result := &Result{}
	for _, file := range files {
		doc, created, err := s.SyncFile(ctx, file)
		if err != nil {
			slog.Warn("同步失败", slog.String("file", file), slog.Any("error", err))
			result.Failed++
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		slog.Info("同步成功", slog.String("uid", doc.UID), slog.Bool("created", created))
		result.Success++
		if created {
			result.Created++
		}
	}

	if len(files) > 0 {
		if err := metadata.SetTime(s.db.WithContext(ctx), metadata.LastSyncAtKey, time.Now()); err != nil {
			return result, fmt.Errorf("无法记录同步时间: %w", err)
		}
		if err := metadata.SetInt(s.db.WithContext(ctx), metadata.LastSyncCountKey, int64(result.Success)); err != nil {
			return result, fmt.Errorf("无法记录同步数量: %w", err)
		}
	}
	return result, nil
}
