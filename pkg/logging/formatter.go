package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// fieldPriority orders the leading fields of a console line. Fields not
// listed follow alphabetically.
var fieldPriority = map[string]int{
	"time":       1,
	"level":      2,
	"msg":        3,
	"task_id":    4,
	"keyword":    5,
	"status":     6,
	"progress":   7,
	"channel_id": 8,
	"error":      9,
}

var highlightedFields = map[string]bool{
	"task_id":    true,
	"keyword":    true,
	"channel_id": true,
	"error":      true,
}

// ColoredJSONFormatter renders entries as a single coloured line of
// key=value pairs with JSON-encoded values, for interactive use.
type ColoredJSONFormatter struct {
	TimestampFormat string
	SortingFunc     func([]string) []string
	DisableColors   bool
}

func NewColoredJSONFormatter() *ColoredJSONFormatter {
	return &ColoredJSONFormatter{
		TimestampFormat: time.RFC3339,
		SortingFunc:     defaultFieldSorting,
	}
}

func (f *ColoredJSONFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	if f.SortingFunc != nil {
		keys = f.SortingFunc(keys)
	} else {
		sort.Strings(keys)
	}

	b := entry.Buffer
	if b == nil {
		b = &bytes.Buffer{}
	}

	paint := func(c *color.Color, s string) string {
		if f.DisableColors {
			return s
		}
		return c.Sprint(s)
	}

	levelColor := getLevelColor(entry.Level)
	b.WriteString(paint(color.New(color.FgYellow), entry.Time.Format(f.TimestampFormat)))
	b.WriteByte(' ')
	b.WriteString(paint(levelColor, fmt.Sprintf("%-7s", strings.ToUpper(entry.Level.String()))))
	b.WriteByte(' ')
	b.WriteString(paint(levelColor, entry.Message))

	for _, k := range keys {
		fieldColor := color.New(color.FgCyan)
		if highlightedFields[k] {
			fieldColor = color.New(color.FgGreen)
		}
		b.WriteByte(' ')
		b.WriteString(paint(fieldColor, k+"="))
		b.WriteString(formatValue(entry.Data[k]))
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

func formatValue(v interface{}) string {
	switch v := v.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case error:
		return fmt.Sprintf("%q", v.Error())
	case fmt.Stringer:
		return fmt.Sprintf("%q", v.String())
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}

func getLevelColor(level logrus.Level) *color.Color {
	switch level {
	case logrus.DebugLevel, logrus.TraceLevel:
		return color.New(color.FgBlue)
	case logrus.InfoLevel:
		return color.New(color.FgGreen)
	case logrus.WarnLevel:
		return color.New(color.FgYellow)
	case logrus.ErrorLevel:
		return color.New(color.FgRed)
	case logrus.FatalLevel, logrus.PanicLevel:
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New(color.FgWhite)
	}
}

func defaultFieldSorting(keys []string) []string {
	sort.Slice(keys, func(i, j int) bool {
		iPriority := fieldPriority[keys[i]]
		jPriority := fieldPriority[keys[j]]
		switch {
		case iPriority != 0 && jPriority != 0:
			return iPriority < jPriority
		case iPriority != 0:
			return true
		case jPriority != 0:
			return false
		}
		return keys[i] < keys[j]
	})
	return keys
}
