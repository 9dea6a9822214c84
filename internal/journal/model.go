package journal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Reflection 是一条每周学习反思。
type Reflection struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Date       string `json:"date"`
	Reflection string `json:"reflection"`
	Week       *int   `json:"week"`
}

// Project 是作品集中的一个项目。
type Project struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Technologies []string `json:"technologies"`
	ImageURL     *string  `json:"imageUrl"`
	DemoURL      *string  `json:"demoUrl"`
	Date         string   `json:"date"`
}

// NewReflection 是创建反思时客户端可提交的字段，date 由服务端填充。
type NewReflection struct {
	Name       string
	Reflection string
	Week       *int
}

// NewProject 是创建项目时客户端可提交的字段。
type NewProject struct {
	Title        string
	Description  string
	Technologies []string
	ImageURL     *string
	DemoURL      *string
	Date         string
}

// Issue 描述单个字段的校验失败。
type Issue struct {
	Code     string   `json:"code"`
	Expected string   `json:"expected,omitempty"`
	Received string   `json:"received,omitempty"`
	Path     []string `json:"path"`
	Message  string   `json:"message"`
}

// ValidationError 汇总请求体的全部校验问题。
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		parts[i] = strings.Join(issue.Path, ".") + ": " + issue.Message
	}
	return "invalid data: " + strings.Join(parts, "; ")
}

type reflectionPayload struct {
	Name       *string `json:"name"`
	Reflection *string `json:"reflection"`
	Week       *int    `json:"week"`
}

type projectPayload struct {
	Title        *string   `json:"title"`
	Description  *string   `json:"description"`
	Technologies *[]string `json:"technologies"`
	ImageURL     *string   `json:"imageUrl"`
	DemoURL      *string   `json:"demoUrl"`
	Date         *string   `json:"date"`
}

// ParseNewReflection 解析并校验创建反思的请求体。
func ParseNewReflection(body []byte) (NewReflection, error) {
	var payload reflectionPayload
	if err := decodePayload(body, &payload); err != nil {
		return NewReflection{}, err
	}
	var issues []Issue
	issues = requireString(issues, "name", payload.Name)
	issues = requireString(issues, "reflection", payload.Reflection)
	if len(issues) > 0 {
		return NewReflection{}, &ValidationError{Issues: issues}
	}
	return NewReflection{
		Name:       *payload.Name,
		Reflection: *payload.Reflection,
		Week:       payload.Week,
	}, nil
}

// ErrNoData 表示更新请求体为空或是空对象。
var ErrNoData = errors.New("no data provided")

// ReflectionPatch 是更新反思时提交的字段，nil 表示保留原值。
// ClearWeek 对应显式的 "week": null。
type ReflectionPatch struct {
	Name       *string
	Reflection *string
	Week       *int
	ClearWeek  bool
}

// ParseReflectionPatch 解析更新反思的请求体，未出现的字段保持不变。
func ParseReflectionPatch(body []byte) (ReflectionPatch, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(body), &fields); err != nil || len(fields) == 0 {
		return ReflectionPatch{}, ErrNoData
	}
	var payload reflectionPayload
	if err := decodePayload(body, &payload); err != nil {
		return ReflectionPatch{}, err
	}
	patch := ReflectionPatch{
		Name:       payload.Name,
		Reflection: payload.Reflection,
		Week:       payload.Week,
	}
	if raw, ok := fields["week"]; ok && string(bytes.TrimSpace(raw)) == "null" {
		patch.ClearWeek = true
	}
	return patch, nil
}

// ParseNewProject 解析并校验创建项目的请求体。
func ParseNewProject(body []byte) (NewProject, error) {
	var payload projectPayload
	if err := decodePayload(body, &payload); err != nil {
		return NewProject{}, err
	}
	var issues []Issue
	issues = requireString(issues, "title", payload.Title)
	issues = requireString(issues, "description", payload.Description)
	if payload.Technologies == nil {
		issues = append(issues, requiredIssue("technologies", "array"))
	}
	issues = requireString(issues, "date", payload.Date)
	if len(issues) > 0 {
		return NewProject{}, &ValidationError{Issues: issues}
	}
	technologies := append([]string{}, (*payload.Technologies)...)
	return NewProject{
		Title:        *payload.Title,
		Description:  *payload.Description,
		Technologies: technologies,
		ImageURL:     payload.ImageURL,
		DemoURL:      payload.DemoURL,
		Date:         *payload.Date,
	}, nil
}

func decodePayload(body []byte, target any) error {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return &ValidationError{Issues: []Issue{{
			Code:    "invalid_type",
			Path:    []string{},
			Message: "Expected object",
		}}}
	}
	if err := json.Unmarshal(body, target); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			expected := typeErr.Type.Kind().String()
			return &ValidationError{Issues: []Issue{{
				Code:     "invalid_type",
				Expected: expected,
				Received: typeErr.Value,
				Path:     strings.Split(typeErr.Field, "."),
				Message:  fmt.Sprintf("Expected %s, received %s", expected, typeErr.Value),
			}}}
		}
		return &ValidationError{Issues: []Issue{{
			Code:    "invalid_json",
			Path:    []string{},
			Message: err.Error(),
		}}}
	}
	return nil
}

func requireString(issues []Issue, field string, value *string) []Issue {
	if value == nil {
		return append(issues, requiredIssue(field, "string"))
	}
	return issues
}

func requiredIssue(field, expected string) Issue {
	return Issue{
		Code:     "invalid_type",
		Expected: expected,
		Received: "undefined",
		Path:     []string{field},
		Message:  "Required",
	}
}
