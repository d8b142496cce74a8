package security

import (
	"regexp"
)

// Rule 定义了敏感信息检测规则
type Rule struct {
	Name        string
	Pattern     *regexp.Regexp
	Replacement string
}

// Scanner 扫描并清理文本中的敏感信息 (提示词、上游响应片段)
type Scanner struct {
	rules []Rule
}

// NewScanner 创建一个新的 Scanner 实例，内置所有检测规则
func NewScanner() *Scanner {
	s := &Scanner{}

	// 按照优先级顺序注册，先匹配更具体的模式
	s.mustAdd("Private Key", `-----BEGIN [A-Z ]+ PRIVATE KEY-----`, "[PRIVATE_KEY_REDACTED]")
	// 上游凭证本身就是 JWT，必须排在邮箱之前 (payload 里可能含邮箱)
	s.mustAdd("JWT", `\beyJ[A-Za-z0-9_-]{8,}\.eyJ[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{8,}`, "[JWT_REDACTED]")
	s.mustAdd("Bearer Token", `(?i)\bbearer\s+[A-Za-z0-9._~+/-]{16,}=*`, "Bearer [TOKEN_REDACTED]")
	s.mustAdd("AWS Access Key", `\bAKIA[0-9A-Z]{16}\b`, "[AWS_AK_REDACTED]")
	s.mustAdd("OpenAI API Key", `\bsk-(?:proj-)?[a-zA-Z0-9]{20,}\b`, "[OPENAI_KEY_REDACTED]")
	s.mustAdd("GitHub Token", `\b(ghp|gho|ghu|ghs|ghr)_[a-zA-Z0-9]{36}\b`, "[GITHUB_TOKEN_REDACTED]")
	s.mustAdd("Google API Key", `\bAIza[0-9A-Za-z-_]{35}\b`, "[GOOGLE_KEY_REDACTED]")
	s.mustAdd("Email", `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`, "[EMAIL_REDACTED]")
	// 中国手机号：1[3-9] 开头，11位
	s.mustAdd("Mobile Phone", `\b(?:\+?86)?\s*(?:1[3-9]\d{9})\b`, "[PHONE_REDACTED]")

	return s
}

func (s *Scanner) mustAdd(name, pattern, replacement string) {
	s.rules = append(s.rules, Rule{
		Name:        name,
		Pattern:     regexp.MustCompile(pattern),
		Replacement: replacement,
	})
}

// Sanitize 按顺序应用所有规则，返回清理后的文本
func (s *Scanner) Sanitize(input string) string {
	result := input
	for _, rule := range s.rules {
		result = rule.Pattern.ReplaceAllString(result, rule.Replacement)
	}
	return result
}

// Detect 返回命中的规则名称
func (s *Scanner) Detect(input string) []string {
	var hits []string
	for _, rule := range s.rules {
		if rule.Pattern.MatchString(input) {
			hits = append(hits, rule.Name)
		}
	}
	return hits
}

// AddRule 动态添加自定义规则
func (s *Scanner) AddRule(name string, pattern string, replacement string) error {
	compiled, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	s.rules = append(s.rules, Rule{
		Name:        name,
		Pattern:     compiled,
		Replacement: replacement,
	})
	return nil
}

// GetRules 返回当前所有规则的副本
func (s *Scanner) GetRules() []Rule {
	rulesCopy := make([]Rule, len(s.rules))
	copy(rulesCopy, s.rules)
	return rulesCopy
}
