package page

import (
	"strings"
	"unicode"
)

const (
	Ext = ".md"

	// MaxNameRunes 限制文件名主体长度（不含消歧后缀与扩展名）。
	MaxNameRunes = 120

	fallbackName = "untitled"
)

// BaseName 把标题清洗为可用的文件名主体（不含扩展名）。
//
// 规则：
// - 删除 / \ : * ? " < > | 与控制字符
// - 连续空白折叠为一个空格
// - 去掉首尾空白与点（开头的点会生成隐藏文件）
// - Windows 保留名（CON、NUL、COM1…）在主体后追加 "_"
// - 最多 MaxNameRunes 个字符；清洗后为空则用 untitled
func BaseName(title string) string {
	var b strings.Builder
	for _, r := range title {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			continue
		}
		if strings.ContainsRune(`/\:*?"<>|`, r) {
			continue
		}
		b.WriteRune(r)
	}
	s := strings.Join(strings.Fields(b.String()), " ")
	s = strings.TrimLeft(s, ". ")
	s = avoidReserved(s)

	if rs := []rune(s); len(rs) > MaxNameRunes {
		s = string(rs[:MaxNameRunes])
	}
	s = strings.TrimRight(s, ". ")
	if s == "" {
		return fallbackName
	}
	return s
}

// reservedStems 是 Windows 上不能作为文件名主体的设备名（不区分大小写，扩展名无效）。
var reservedStems = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// avoidReserved：第一个点之前的部分是保留名时，在其后插入 "_"（"nul.x" -> "nul_.x"）。
func avoidReserved(s string) string {
	stem, rest := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		stem, rest = s[:i], s[i:]
	}
	stem = strings.TrimRight(stem, " ")
	if !reservedStems[strings.ToUpper(stem)] {
		return s
	}
	return stem + "_" + rest
}

// FileName 返回标题对应的页面文件名（含 .md）。
func FileName(title string) string { return BaseName(title) + Ext }

// nameKey 用于大小写不敏感的冲突判断（macOS/Windows 默认文件系统不区分大小写）。
func nameKey(name string) string { return strings.ToLower(name) }
