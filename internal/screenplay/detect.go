// internal/screenplay/detect.go
package screenplay

import (
	"regexp"
	"strings"
)

var (
	// 括号注释，如 (O.S.)、(CONT'D)
	parentheticalPattern = regexp.MustCompile(`\s*\([^)]*\)`)
	// 去掉注释后的角色提示行：大写字母开头，只含大写字母、数字、空格
	cuePattern = regexp.MustCompile(`^[A-Z][A-Z0-9 ]*$`)
)

// 场景标题与转场关键字，包含任一即不视为角色
var reservedCueWords = []string{"EXT.", "INT.", "CUT TO", "FADE", "DISSOLVE"}

// CanonicalCue 判断一行是否为角色提示行，返回规范名
func CanonicalCue(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return "", false
	}

	canonical := strings.TrimSpace(parentheticalPattern.ReplaceAllString(trimmed, ""))
	if len(canonical) <= 2 || !cuePattern.MatchString(canonical) {
		return "", false
	}
	for _, word := range reservedCueWords {
		if strings.Contains(canonical, word) {
			return "", false
		}
	}
	return canonical, true
}

// Detect 逐行扫描剧本，返回去重后的角色规范名（按首次出现排序）
// 结果只对当前文本快照有效，文本变化后需重新计算
func Detect(screenplay string) []string {
	seen := make(map[string]struct{})
	tokens := []string{}

	for _, line := range strings.Split(screenplay, "\n") {
		token, ok := CanonicalCue(line)
		if !ok {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		tokens = append(tokens, token)
	}
	return tokens
}

// Contains 判断 token 是否在当前剧本中被识别为角色
func Contains(screenplay, token string) bool {
	for _, t := range Detect(screenplay) {
		if t == token {
			return true
		}
	}
	return false
}
