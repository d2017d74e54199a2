package stream

import (
	"fmt"
	"strings"
)

// Status 标记一段思考内容的生命周期。
type Status string

const (
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
)

// Event 是切分器的输出单元：可见 token 或思考片段。
type Event interface {
	streamEvent()
}

// Token 面向用户的可见内容片段。
type Token struct {
	Content string
}

// Thought 标签内的思考内容片段。一对标签闭合时会额外发出一个
// content 为空、status 为 success 的收尾事件，供消费方做 flush。
type Thought struct {
	Content string
	Status  Status
}

func (Token) streamEvent()   {}
func (Thought) streamEvent() {}

// Splitter 按 token 粒度把模型输出流切成可见/思考两路。
// 标签可以被任意切分到多个片段里：缓冲区尾部凡是可能
// 还会长成完整标签的前缀都会被扣住，等待后续输入。
//
// 单实例只能服务一条流，且必须按到达顺序喂入。
type Splitter struct {
	startTags []string
	endTags   []string
	allTags   []string
	maxTagLen int

	buf      strings.Builder
	thinking bool
}

// NewSplitter 构造切分器。start/end 按下标配对；长度不一致或
// 含空标签属于配置错误，构造期直接失败，绝不等到流中途。
func NewSplitter(startTags, endTags []string) (*Splitter, error) {
	if len(startTags) != len(endTags) {
		return nil, fmt.Errorf("tag list length mismatch: %d start vs %d end", len(startTags), len(endTags))
	}
	if len(startTags) == 0 {
		return nil, fmt.Errorf("at least one tag pair is required")
	}
	all := make([]string, 0, len(startTags)*2)
	maxLen := 0
	for i := range startTags {
		if startTags[i] == "" || endTags[i] == "" {
			return nil, fmt.Errorf("empty tag at index %d", i)
		}
		all = append(all, startTags[i], endTags[i])
		if len(startTags[i]) > maxLen {
			maxLen = len(startTags[i])
		}
		if len(endTags[i]) > maxLen {
			maxLen = len(endTags[i])
		}
	}
	return &Splitter{
		startTags: append([]string(nil), startTags...),
		endTags:   append([]string(nil), endTags...),
		allTags:   all,
		maxTagLen: maxLen,
	}, nil
}

// IsThinking 报告切分器当前是否位于一对标签内部。
// 流被中途取消时调用方可据此判断闭合事件是否缺失。
func (s *Splitter) IsThinking() bool { return s.thinking }

// Feed 追加一个上游片段并返回因此产生的事件（可能为空）。
func (s *Splitter) Feed(fragment string) []Event {
	if fragment == "" {
		return nil
	}
	s.buf.WriteString(fragment)
	var events []Event

	for {
		buf := s.buf.String()
		if buf == "" {
			break
		}

		if !s.thinking {
			if idx, tag := earliestTag(buf, s.startTags); idx >= 0 {
				if idx > 0 {
					events = append(events, Token{Content: buf[:idx]})
				}
				s.reset(buf[idx+len(tag):])
				s.thinking = true
				continue
			}
		} else {
			if idx, tag := earliestTag(buf, s.endTags); idx >= 0 {
				if idx > 0 {
					events = append(events, Thought{Content: buf[:idx], Status: StatusLoading})
				}
				events = append(events, Thought{Status: StatusSuccess})
				s.reset(buf[idx+len(tag):])
				s.thinking = false
				continue
			}
		}

		// 扣住可能尚未到齐的标签前缀，其余全部放行
		hold := s.partialSuffix(buf)
		emit := buf[:len(buf)-hold]
		if emit != "" {
			events = append(events, s.wrap(emit))
		}
		s.reset(buf[len(buf)-hold:])
		break
	}
	return events
}

// Flush 在流结束时排空缓冲。残留内容按当前模式发出；
// 思考未闭合时只给 loading 片段，不伪造 success 收尾。
func (s *Splitter) Flush() []Event {
	buf := s.buf.String()
	if buf == "" {
		return nil
	}
	s.reset("")
	return []Event{s.wrap(buf)}
}

func (s *Splitter) wrap(content string) Event {
	if s.thinking {
		return Thought{Content: content, Status: StatusLoading}
	}
	return Token{Content: content}
}

func (s *Splitter) reset(rest string) {
	s.buf.Reset()
	s.buf.WriteString(rest)
}

// partialSuffix 返回 buf 尾部与任一标签真前缀重合的最长长度。
func (s *Splitter) partialSuffix(buf string) int {
	maxK := s.maxTagLen - 1
	if maxK > len(buf) {
		maxK = len(buf)
	}
	for k := maxK; k >= 1; k-- {
		suffix := buf[len(buf)-k:]
		for _, tag := range s.allTags {
			if len(tag) > k && tag[:k] == suffix {
				return k
			}
		}
	}
	return 0
}

// earliestTag 返回 buf 中最先出现的标签及其位置；并列时取更长的标签。
func earliestTag(buf string, tags []string) (int, string) {
	best := -1
	bestTag := ""
	for _, tag := range tags {
		idx := strings.Index(buf, tag)
		if idx < 0 {
			continue
		}
		if best < 0 || idx < best || (idx == best && len(tag) > len(bestTag)) {
			best = idx
			bestTag = tag
		}
	}
	return best, bestTag
}
