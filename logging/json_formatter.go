package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JsonFormatter 每个条目输出一行 JSON，fields 按记录顺序输出
type JsonFormatter struct {
	TimestampFormat string
}

// NewJsonFormatter 创建 JSON 格式化器
func NewJsonFormatter() *JsonFormatter {
	return &JsonFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	}
}

func (f *JsonFormatter) Format(entry *LogEntry) ([]byte, error) {
	buffer := GlobalBufferPool.Get()
	defer GlobalBufferPool.Put(buffer)

	buffer.WriteByte('{')
	writeJSONKey(buffer, "time")
	writeJSONValue(buffer, entry.Time.Format(f.TimestampFormat))
	buffer.WriteByte(',')
	writeJSONKey(buffer, "level")
	writeJSONValue(buffer, entry.Level.String())
	if entry.Category != "" {
		buffer.WriteByte(',')
		writeJSONKey(buffer, "category")
		writeJSONValue(buffer, entry.Category)
	}
	buffer.WriteByte(',')
	writeJSONKey(buffer, "msg")
	writeJSONValue(buffer, entry.Message)

	if len(entry.Fields) > 0 {
		buffer.WriteString(`,"fields":{`)
		for i, field := range entry.Fields {
			if i > 0 {
				buffer.WriteByte(',')
			}
			writeJSONKey(buffer, field.Key)
			writeJSONValue(buffer, plainValue(field.Value))
		}
		buffer.WriteByte('}')
	}
	buffer.WriteString("}\n")

	result := make([]byte, buffer.Len())
	copy(result, buffer.Bytes())
	return result, nil
}

func writeJSONKey(buffer *bytes.Buffer, key string) {
	writeJSONValue(buffer, key)
	buffer.WriteByte(':')
}

// writeJSONValue 无法序列化的值退化为 %v 字符串
func writeJSONValue(buffer *bytes.Buffer, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		data, _ = json.Marshal(fmt.Sprintf("%v", v))
	}
	buffer.Write(data)
}
