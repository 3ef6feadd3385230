package chunking

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/regrag/types"
)

// qaPairWeight 问答块之间的双向边权重。
const qaPairWeight = 0.9

// QuestionAnswerChunker 匹配显式 Q/A 标记或疑问句，
// 产出成对的问题块与答案块，双向权重 0.9。
type QuestionAnswerChunker struct {
	logger *zap.Logger
}

// NewQuestionAnswerChunker 创建问答分块器。
func NewQuestionAnswerChunker(logger *zap.Logger) *QuestionAnswerChunker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuestionAnswerChunker{logger: logger.With(zap.String("component", "qa_chunker"))}
}

func (c *QuestionAnswerChunker) Name() string { return StrategyQuestionAnswer }

func (c *QuestionAnswerChunker) Chunk(ctx context.Context, doc types.DocumentInfo, opts Options) ([]types.Chunk, error) {
	text := doc.FullText()

	pairs := extractMarkedPairs(text)
	if len(pairs) == 0 {
		pairs = extractQuestionSentences(text)
	}

	var chunks []types.Chunk
	seq := 0
	for _, p := range pairs {
		q := newChunk(ChunkID(doc.ID, seq), p.question, types.ChunkTypeQuestion, StrategyQuestionAnswer)
		seq++

		if strings.TrimSpace(p.answer) == "" {
			chunks = append(chunks, q)
			continue
		}

		a := newChunk(ChunkID(doc.ID, seq), p.answer, types.ChunkTypeAnswer, StrategyQuestionAnswer)
		seq++

		// 双向高权重互链
		q.AddRelation(a.ID, qaPairWeight)
		a.AddRelation(q.ID, qaPairWeight)
		chunks = append(chunks, q, a)
	}

	c.logger.Debug("question-answer chunking completed",
		zap.String("doc_id", doc.ID),
		zap.Int("pairs", len(pairs)))
	return chunks, nil
}

type qaPair struct {
	question string
	answer   string
}

// extractMarkedPairs 解析显式 Q:/A: 标记的行。
func extractMarkedPairs(text string) []qaPair {
	var pairs []qaPair
	var current *qaPair

	appendLine := func(dst *string, line string) {
		if *dst != "" {
			*dst += " "
		}
		*dst += line
	}

	inAnswer := false
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "q:") || strings.HasPrefix(lower, "question:"):
			if current != nil {
				pairs = append(pairs, *current)
			}
			current = &qaPair{question: strings.TrimSpace(line[strings.Index(line, ":")+1:])}
			inAnswer = false
		case strings.HasPrefix(lower, "a:") || strings.HasPrefix(lower, "answer:"):
			if current != nil {
				current.answer = strings.TrimSpace(line[strings.Index(line, ":")+1:])
				inAnswer = true
			}
		default:
			if current == nil {
				continue
			}
			if inAnswer {
				appendLine(&current.answer, line)
			} else {
				appendLine(&current.question, line)
			}
		}
	}
	if current != nil {
		pairs = append(pairs, *current)
	}
	return pairs
}

// extractQuestionSentences 无显式标记时按疑问句切分：
// 每个疑问句作为问题，其后到下一个疑问句之前的文本作为答案。
func extractQuestionSentences(text string) []qaPair {
	sentences := SplitSentences(text)

	var pairs []qaPair
	var current *qaPair
	for _, s := range sentences {
		if IsQuestionSentence(s) {
			if current != nil {
				pairs = append(pairs, *current)
			}
			current = &qaPair{question: s}
			continue
		}
		if current != nil {
			if current.answer != "" {
				current.answer += " "
			}
			current.answer += s
		}
	}
	if current != nil {
		pairs = append(pairs, *current)
	}
	return pairs
}
