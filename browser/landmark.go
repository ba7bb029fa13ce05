package browser

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind 地标查询语法
type Kind int

const (
	KindCSS Kind = iota
	KindXPath
)

// Landmark 一个 UI 地标
type Landmark struct {
	Name  string `json:"name" yaml:"name"`
	Query string `json:"query" yaml:"query"`
	Kind  Kind   `json:"kind" yaml:"kind"`
}

// CSS 创建 CSS 地标
func CSS(name, query string) Landmark {
	return Landmark{Name: name, Query: query, Kind: KindCSS}
}

// XPath 创建 XPath 地标
func XPath(name, query string) Landmark {
	return Landmark{Name: name, Query: query, Kind: KindXPath}
}

// ButtonText 匹配文本包含任一 texts 的按钮或链接
func ButtonText(name string, texts ...string) Landmark {
	var parts []string
	for _, text := range texts {
		lit := xpathLiteral(text)
		parts = append(parts,
			fmt.Sprintf("//button[contains(normalize-space(.), %s)]", lit),
			fmt.Sprintf("//a[contains(normalize-space(.), %s)]", lit),
		)
	}
	return XPath(name, strings.Join(parts, " | "))
}

// RoleText 匹配指定 role 且文本包含 text 的元素
func RoleText(name, role, text string) Landmark {
	return XPath(name, fmt.Sprintf("//*[@role=%s][contains(normalize-space(.), %s)]",
		xpathLiteral(role), xpathLiteral(text)))
}

// IsZero 地标未配置
func (l Landmark) IsZero() bool {
	return l.Query == ""
}

func (l Landmark) String() string {
	if l.Name != "" {
		return l.Name
	}
	return l.Query
}

// xpathLiteral 生成安全的 XPath 字符串字面量
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, `'`) {
		return `'` + s + `'`
	}
	parts := strings.Split(s, `"`)
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = `"` + p + `"`
	}
	return "concat(" + strings.Join(quoted, `, '"', `) + ")"
}

// matchesJS 返回求值为匹配元素数组的 JS 表达式
func (l Landmark) matchesJS() string {
	q, _ := json.Marshal(l.Query)
	if l.Kind == KindXPath {
		return fmt.Sprintf(`(function(){const r=document.evaluate(%s,document,null,XPathResult.ORDERED_NODE_SNAPSHOT_TYPE,null);const a=[];for(let i=0;i<r.snapshotLength;i++){a.push(r.snapshotItem(i));}return a;})()`, q)
	}
	return fmt.Sprintf(`Array.from(document.querySelectorAll(%s))`, q)
}

// visibleJS 任一匹配元素可见时为 true
func (l Landmark) visibleJS() string {
	return fmt.Sprintf(`%s.some(function(el){const r=el.getBoundingClientRect();const s=window.getComputedStyle(el);return r.width>0&&r.height>0&&s.visibility!=="hidden"&&s.display!=="none";})`, l.matchesJS())
}

// lastTextJS 最后一个匹配元素的 textContent，无匹配时为 null
func (l Landmark) lastTextJS() string {
	return fmt.Sprintf(`(function(){const a=%s;if(a.length===0){return null;}return a[a.length-1].textContent||"";})()`, l.matchesJS())
}

// clearJS 聚焦并清空第一个匹配元素的输入内容
func (l Landmark) clearJS() string {
	return fmt.Sprintf(`(function(){const a=%s;if(a.length===0){return false;}const el=a[0];el.focus();if("value" in el){el.value="";}else{el.textContent="";}el.dispatchEvent(new Event("input",{bubbles:true}));return true;})()`, l.matchesJS())
}

// centerJS 把第一个可见匹配元素滚动到视口中央并返回其中心坐标，没有时为 null
func (l Landmark) centerJS() string {
	return fmt.Sprintf(`(function(){const el=%s.find(function(e){const r=e.getBoundingClientRect();return r.width>0&&r.height>0;});if(!el){return null;}el.scrollIntoView({block:"center",inline:"center"});const r=el.getBoundingClientRect();return {x:r.left+r.width/2,y:r.top+r.height/2};})()`, l.matchesJS())
}
