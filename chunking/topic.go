package chunking

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/regrag/types"
)

// topicSubsectionWeight 小节到主题的边权重。
const topicSubsectionWeight = 0.7

// TopicBasedChunker 用大小写/编号启发式识别标题与小标题行：
// 每个主题产出一块，每个小节产出一块，小节以 0.7 权重链到主题。
type TopicBasedChunker struct {
	logger *zap.Logger
}

// NewTopicBasedChunker 创建主题分块器。
func NewTopicBasedChunker(logger *zap.Logger) *TopicBasedChunker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TopicBasedChunker{logger: logger.With(zap.String("component", "topic_chunker"))}
}

func (c *TopicBasedChunker) Name() string { return StrategyTopicBased }

func (c *TopicBasedChunker) Chunk(ctx context.Context, doc types.DocumentInfo, opts Options) ([]types.Chunk, error) {
	lines := strings.Split(doc.FullText(), "\n")

	type topicBlock struct {
		heading     string
		body        []string
		subsections []struct {
			heading string
			body    []string
		}
	}

	var topics []*topicBlock
	var current *topicBlock

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if IsHeadingLine(line) {
			if current != nil && isSubheading(line) {
				current.subsections = append(current.subsections, struct {
					heading string
					body    []string
				}{heading: line})
				continue
			}
			current = &topicBlock{heading: line}
			topics = append(topics, current)
			continue
		}

		if current == nil {
			current = &topicBlock{heading: doc.Title}
			topics = append(topics, current)
		}
		if n := len(current.subsections); n > 0 {
			current.subsections[n-1].body = append(current.subsections[n-1].body, line)
		} else {
			current.body = append(current.body, line)
		}
	}

	var chunks []types.Chunk
	seq := 0
	for _, tb := range topics {
		content := tb.heading
		if body := strings.TrimSpace(strings.Join(tb.body, "\n")); body != "" {
			content += "\n" + body
		}
		topic := newChunk(ChunkID(doc.ID, seq), content, types.ChunkTypeTopic, StrategyTopicBased)
		topic.SetMeta("heading", tb.heading)
		topicIdx := len(chunks)
		chunks = append(chunks, topic)
		seq++

		for _, sub := range tb.subsections {
			subContent := sub.heading
			if body := strings.TrimSpace(strings.Join(sub.body, "\n")); body != "" {
				subContent += "\n" + body
			}
			subChunk := newChunk(ChunkID(doc.ID, seq), subContent, types.ChunkTypeSubsection, StrategyTopicBased)
			subChunk.SetMeta("heading", sub.heading)
			subChunk.SetMeta("topic_id", topic.ID)
			subChunk.AddRelation(topic.ID, topicSubsectionWeight)
			chunks[topicIdx].AddRelation(subChunk.ID, topicSubsectionWeight)
			chunks = append(chunks, subChunk)
			seq++
		}
	}

	c.logger.Debug("topic-based chunking completed",
		zap.String("doc_id", doc.ID),
		zap.Int("topics", len(topics)),
		zap.Int("chunks", len(chunks)))
	return chunks, nil
}

// isSubheading 判断标题行是否为小节标题。
// 全大写行、章节词行与顶级编号（无点号）视为新主题，
// 带点编号与 Title Case 行视为当前主题下的小节。
func isSubheading(line string) bool {
	line = strings.TrimSpace(line)
	if chapterRe.MatchString(line) {
		return false
	}
	if number, _, ok := ParseSectionNumber(line); ok {
		return strings.Contains(number, ".")
	}
	return line != strings.ToUpper(line)
}
