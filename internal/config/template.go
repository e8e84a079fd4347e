package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
)

// Тег {{var "name" default required}} у шаблоні конфігурації
var varTagRegex = regexp.MustCompile(`\{\{var\s+"([^"]+)"\s+([^\s}]+)\s+(true|false)\s*\}\}`)

// requiredPlaceholder підставляється для обов'язкових змінних без значення
const requiredPlaceholder = `"REQUIRED_VALUE_NOT_SET"`

// GenerateConfigFromTemplate генерує HCL конфігурацію з шаблону використовуючи змінні.
// Результат перевіряється HCL парсером до запису на диск.
func GenerateConfigFromTemplate(templatePath, outputPath string, vars map[string]interface{}) error {
	content, err := os.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("failed to read template: %w", err)
	}

	rendered, err := renderConfigTemplate(string(content), vars)
	if err != nil {
		return err
	}

	if _, diags := hclsyntax.ParseConfig(rendered, filepath.Base(outputPath), hcl.Pos{Line: 1, Column: 1}); diags.HasErrors() {
		return fmt.Errorf("generated config is not valid HCL: %s", diags.Error())
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(outputPath, rendered, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// renderConfigTemplate підставляє var теги і виконує text/template
func renderConfigTemplate(content string, vars map[string]interface{}) ([]byte, error) {
	processed := processVarTags(content, vars)

	tmpl, err := template.New("config").Option("missingkey=zero").Parse(processed)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return nil, fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.Bytes(), nil
}

// MissingRequiredVars повертає імена обов'язкових змінних шаблону без значення
func MissingRequiredVars(content string, vars map[string]interface{}) []string {
	var missing []string
	for _, match := range varTagRegex.FindAllStringSubmatch(content, -1) {
		name, defaultValue, required := match[1], match[2], match[3] == "true"
		if _, ok := vars[name]; ok || !required {
			continue
		}
		if defaultValue == `""` {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// processVarTags обробляє {{var "name" default_value required}} теги
func processVarTags(content string, vars map[string]interface{}) string {
	return varTagRegex.ReplaceAllStringFunc(content, func(match string) string {
		matches := varTagRegex.FindStringSubmatch(match)
		if len(matches) != 4 {
			return match
		}

		varName := matches[1]
		defaultValue := matches[2]
		required := matches[3] == "true"

		if value, exists := vars[varName]; exists {
			return formatValue(value)
		}

		if required && defaultValue == `""` {
			return requiredPlaceholder
		}

		return formatValue(parseDefaultValue(defaultValue))
	})
}

// formatValue форматує значення для HCL.
// Рядок через кому і зрізи стають елементами списку; дужки задає шаблон.
func formatValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		if strings.Contains(v, ",") {
			return formatValue(strings.Split(v, ","))
		}
		return strconv.Quote(v)
	case []string:
		quoted := make([]string, 0, len(v))
		for _, item := range v {
			quoted = append(quoted, strconv.Quote(strings.TrimSpace(item)))
		}
		return strings.Join(quoted, ", ")
	case []interface{}:
		items := make([]string, 0, len(v))
		for _, item := range v {
			items = append(items, formatValue(item))
		}
		return strings.Join(items, ", ")
	case int, int32, int64:
		return fmt.Sprintf("%d", v)
	case float32, float64:
		return strconv.FormatFloat(toFloat(v), 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return strconv.Quote(fmt.Sprintf("%v", v))
	}
}

func toFloat(v interface{}) float64 {
	switch f := v.(type) {
	case float32:
		return float64(f)
	case float64:
		return f
	}
	return 0
}

// parseDefaultValue парсить дефолтне значення з шаблону
func parseDefaultValue(defaultValue string) interface{} {
	if strings.HasPrefix(defaultValue, `"`) && strings.HasSuffix(defaultValue, `"`) {
		return strings.Trim(defaultValue, `"`)
	}

	if intVal, err := strconv.Atoi(defaultValue); err == nil {
		return intVal
	}

	if floatVal, err := strconv.ParseFloat(defaultValue, 64); err == nil {
		return floatVal
	}

	if boolVal, err := strconv.ParseBool(defaultValue); err == nil {
		return boolVal
	}

	return defaultValue
}

// LoadConfigVars завантажує змінні шаблону з JSON файлу
func LoadConfigVars(dataPath string) (map[string]interface{}, error) {
	content, err := os.ReadFile(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config data file: %w", err)
	}

	vars := make(map[string]interface{})
	decoder := json.NewDecoder(bytes.NewReader(content))
	decoder.UseNumber()
	if err := decoder.Decode(&vars); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config data: %w", err)
	}

	for key, value := range vars {
		if number, ok := value.(json.Number); ok {
			if i, err := number.Int64(); err == nil {
				vars[key] = i
			} else if f, err := number.Float64(); err == nil {
				vars[key] = f
			}
		}
	}

	return vars, nil
}
