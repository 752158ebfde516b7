// internal/screenplay/rename.go
package screenplay

import (
	"regexp"
	"strings"
)

var titleWordPattern = regexp.MustCompile(`\w\S*`)

// TitleCase 每个词首字母大写，其余小写
func TitleCase(s string) string {
	return titleWordPattern.ReplaceAllStringFunc(s, func(word string) string {
		return strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
	})
}

// Rename 整词替换角色名：大写形式替换为大写新名，首字母大写形式替换为首字母大写新名
// from 或 to 为空时原样返回
//
// 已知限制：若新名与文本中已有的其他名字相同，反向改名无法区分两者
func Rename(screenplay, from, to string) string {
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	if from == "" || to == "" {
		return screenplay
	}

	upperFrom, upperTo := strings.ToUpper(from), strings.ToUpper(to)
	titleFrom, titleTo := TitleCase(from), TitleCase(to)

	pattern := regexp.MustCompile(`\b(?:` + regexp.QuoteMeta(upperFrom) + `|` + regexp.QuoteMeta(titleFrom) + `)\b`)

	// 单次扫描，替换结果不会再次参与匹配
	return pattern.ReplaceAllStringFunc(screenplay, func(match string) string {
		if match == upperFrom {
			return upperTo
		}
		return titleTo
	})
}
