// Package resolver 负责本地路径和远端对象名之间的映射
// 远端对象名一律使用 "/" 分隔，与平台无关
package resolver

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"blobsync/pkg/ignore"
	"blobsync/pkg/types"
)

var (
	ErrOutsideBase = errors.New("path is outside base directory")
	ErrInvalidName = errors.New("invalid blob name")
)

// CleanPath 统一清洗成 "/" 分隔的相对形式
func CleanPath(p string) string {
	return filepath.ToSlash(filepath.Clean(p))
}

// RemoteName 计算目录上传时文件的远端对象名
//
//	base=/data/movies, file=/data/movies/a/b.mkv
//	stripBase=false -> "movies/a/b.mkv" (相对于 base 的父目录)
//	stripBase=true  -> "a/b.mkv"        (相对于 base 本身)
func RemoteName(base, file string, stripBase bool) (string, error) {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", err
	}
	absFile, err := filepath.Abs(file)
	if err != nil {
		return "", err
	}

	root := absBase
	if !stripBase {
		root = filepath.Dir(absBase)
	}
	rel, err := filepath.Rel(root, absFile)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s (base %s): %w", file, base, ErrOutsideBase)
	}
	return rel, nil
}

// SingleName 计算单文件上传时的远端对象名
// override 非空时优先使用；绝对路径或跳出当前目录的路径只保留文件名
func SingleName(file, override string) string {
	if override != "" {
		return strings.TrimLeft(CleanPath(override), "/")
	}
	if filepath.IsAbs(file) {
		return filepath.Base(file)
	}
	name := CleanPath(file)
	if name == ".." || strings.HasPrefix(name, "../") {
		return filepath.Base(file)
	}
	return name
}

// LocalPath 计算下载时对象在本地的路径
// 对象名里的 ".." 不能让文件落到 dest 之外
func LocalPath(dest, name string) (string, error) {
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return "", fmt.Errorf("blob name %q: %w", name, ErrOutsideBase)
		}
	}
	clean := path.Clean("/" + name)[1:]
	if clean == "" || clean != strings.TrimPrefix(name, "/") {
		return "", fmt.Errorf("blob name %q: %w", name, ErrInvalidName)
	}
	return filepath.Join(dest, filepath.FromSlash(clean)), nil
}

// IsFolderMarker S3/Azure 控制台建目录时留下的以 "/" 结尾的空对象
func IsFolderMarker(name string) bool {
	return strings.HasSuffix(name, "/")
}

// Walk 递归列出 base 下要上传的文件，按字典序返回
// 忽略规则按相对于 base 的路径匹配
func Walk(base string, stripBase bool, matcher *ignore.Matcher) ([]types.WorkItem, error) {
	fi, err := os.Stat(base)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", base)
	}

	var items []types.WorkItem
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if matcher.Matches(filepath.ToSlash(rel)) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !isRegular(p, d) {
			return nil
		}

		name, err := RemoteName(base, p, stripBase)
		if err != nil {
			return err
		}
		items = append(items, types.WorkItem{LocalPath: p, RemoteName: name})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// isRegular 普通文件，或者指向普通文件的符号链接
func isRegular(p string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink != 0 {
		fi, err := os.Stat(p)
		return err == nil && fi.Mode().IsRegular()
	}
	return false
}

// DownloadItems 把对象名列表映射到 dest 下的本地路径
// 目录标记对象不下载，单独返回给调用方记录
// 无法映射的名字仍然生成 LocalPath 为空的 item，由下载 handler 按单项失败处理，不影响其他对象
func DownloadItems(dest string, names []string) (items []types.WorkItem, markers []string) {
	items = make([]types.WorkItem, 0, len(names))
	for _, name := range names {
		if IsFolderMarker(name) {
			markers = append(markers, name)
			continue
		}
		local, _ := LocalPath(dest, name)
		items = append(items, types.WorkItem{LocalPath: local, RemoteName: name})
	}
	return items, markers
}
