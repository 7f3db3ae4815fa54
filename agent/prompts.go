package agent

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed prompts/*.md
var embeddedPrompts embed.FS

// LoadPrompt 加载系统提示词。优先从 promptsDir 读取（便于运维覆盖），
// 目录为空或文件不存在时回退到内置提示词。
func LoadPrompt(promptsDir, file string) (string, error) {
	if promptsDir != "" {
		data, err := os.ReadFile(filepath.Join(promptsDir, file))
		if err == nil {
			return string(data), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("read prompt %s: %w", file, err)
		}
	}

	data, err := embeddedPrompts.ReadFile("prompts/" + file)
	if err != nil {
		return "", fmt.Errorf("prompt file not found: %s", file)
	}
	return string(data), nil
}
