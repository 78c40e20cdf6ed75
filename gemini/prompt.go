package gemini

import (
	"errors"
	"fmt"
	"strings"
)

var ErrNoEmojis = errors.New("please select at least one emoji")

const basePrompt = "Create a single emoji that combines these emojis into one: %s. " +
	"Style: Standard Unicode emoji style like Google Noto Emoji or Apple emoji. " +
	"3D-ish with subtle gradients and soft shadows, rounded glossy appearance, " +
	"warm vibrant colors. Single centered icon on a solid, uniform, bright green (#00FF00) background " +
	"that touches every edge of the image. Do not use that green anywhere on the emoji itself. " +
	"Must look like a native system emoji, not flat or illustrated."

// BuildPrompt 把选中的 emoji 和可选的修饰语拼成生成提示词
func BuildPrompt(emojis []string, modifier string) (string, error) {
	picked := compact(emojis)
	if len(picked) == 0 {
		return "", ErrNoEmojis
	}

	prompt := fmt.Sprintf(basePrompt, strings.Join(picked, " "))
	if m := strings.TrimSpace(modifier); m != "" {
		prompt += " Additional modification: " + m
	}
	return prompt, nil
}

func filenamePrompt(emojis []string, modifier string) string {
	joined := strings.Join(compact(emojis), " ")
	if m := strings.TrimSpace(modifier); m != "" {
		return fmt.Sprintf("Generate a short filename (2-4 words, snake_case, no extension) for an emoji that combines: %s with style: %s. Reply with ONLY the filename, nothing else.", joined, m)
	}
	return fmt.Sprintf("Generate a short filename (2-4 words, snake_case, no extension) for an emoji that combines: %s. Reply with ONLY the filename, nothing else.", joined)
}

// SanitizeFilename 只保留 [a-z0-9_]，其他字符变成下划线并合并，去掉扩展名
func SanitizeFilename(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, "`\"'")
	s = strings.TrimSuffix(s, ".png")

	var b strings.Builder
	underscore := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}

func compact(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}
