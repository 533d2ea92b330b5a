package logging

import "time"

// LogEntry 日志条目
type LogEntry struct {
	Time     time.Time
	Level    LogLevel
	Category string
	Message  string
	Fields   []Field
}

// FieldValue 在条目中查找字段值，同名字段取最后一个
func (e LogEntry) FieldValue(key string) (any, bool) {
	for i := len(e.Fields) - 1; i >= 0; i-- {
		if e.Fields[i].Key == key {
			return e.Fields[i].Value, true
		}
	}
	return nil, false
}

// Formatter 日志格式化接口
type Formatter interface {
	// Format 格式化日志条目，返回的切片归调用方所有
	Format(entry *LogEntry) ([]byte, error)
}

// plainValue error 转成消息文本，其余原样返回
func plainValue(v any) any {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return v
}
