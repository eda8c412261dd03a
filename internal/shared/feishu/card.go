package feishu

import (
	"fmt"
	"strings"
)

// Field is one short label/value pair of a card.
type Field struct {
	Label string
	Value string
}

// NewReportCard 创建同步结果通知卡片
// title: 卡片标题
// failed: 失败时使用红色模板
// fields: 统计字段（并排显示）
// details: 附加明细，每行一条，为空时省略
func NewReportCard(title string, failed bool, fields []Field, details []string) InteractiveCard {
	template := "green"
	if failed {
		template = "red"
	}

	cardFields := make([]CardField, 0, len(fields))
	for _, f := range fields {
		cardFields = append(cardFields, CardField{
			IsShort: true,
			Text:    CardText{Tag: "lark_md", Content: fmt.Sprintf("**%s**\n%s", f.Label, f.Value)},
		})
	}

	elements := []CardElement{{Tag: "div", Fields: cardFields}}
	if len(details) > 0 {
		elements = append(elements,
			CardElement{Tag: "hr"},
			CardElement{
				Tag:  "div",
				Text: &CardText{Tag: "lark_md", Content: strings.Join(details, "\n")},
			},
		)
	}

	return InteractiveCard{
		Config: &CardConfig{WideScreenMode: true},
		Header: &CardHeader{
			Title:    CardText{Tag: "plain_text", Content: title},
			Template: template,
		},
		Elements: elements,
	}
}
