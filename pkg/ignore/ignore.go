package ignore

import (
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"
)

// FileName 是目录上传时读取的忽略规则文件
const FileName = ".bsyncignore"

// Matcher 封装了忽略逻辑
// 它负责判断目录上传时某个文件是否应该跳过
type Matcher struct {
	ignorer *gitignore.GitIgnore
}

// defaultRules 是强制生效的默认规则
var defaultRules = []string{
	// --- 自身产生的文件 ---
	".bsync",       // md5 缓存和配置目录
	"*.bsync-part", // 未完成或校验失败的下载
	".tmp-*",       // disk 后端的临时文件

	// --- 常见垃圾文件 ---
	".DS_Store", // macOS
	"Thumbs.db", // Windows
}

// NewMatcher 初始化忽略匹配器
// rootPath: 要上传的目录 (用于查找 .bsyncignore 文件)
// extra: 额外的规则 (来自 --exclude 或配置文件)
func NewMatcher(rootPath string, extra ...string) (*Matcher, error) {
	rules := append(append([]string{}, defaultRules...), extra...)

	var ignorer *gitignore.GitIgnore
	var err error

	ignoreFilePath := filepath.Join(rootPath, FileName)
	if _, errStat := os.Stat(ignoreFilePath); errStat == nil {
		// 用户定义了 .bsyncignore：文件内容和默认规则合并编译
		ignorer, err = gitignore.CompileIgnoreFileAndLines(ignoreFilePath, rules...)
	} else {
		ignorer = gitignore.CompileIgnoreLines(rules...)
	}
	if err != nil {
		return nil, err
	}

	return &Matcher{ignorer: ignorer}, nil
}

// Matches 检查给定的路径是否匹配忽略规则
// path: 相对于上传目录的路径，"/" 分隔 (例如 "data/model.bin")
// 返回: true 表示应该忽略 (Skip), false 表示应该保留 (Keep)
func (m *Matcher) Matches(path string) bool {
	if m == nil || m.ignorer == nil {
		return false
	}
	return m.ignorer.MatchesPath(path)
}
