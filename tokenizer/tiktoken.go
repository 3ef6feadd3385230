package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Tiktoken 基于 tiktoken 编码的精确计数器。
// 编码懒加载（首次使用时可能下载数据）；
// 初始化失败时回退到 Estimator，保证计数永不出错。
type Tiktoken struct {
	encoding string
	enc      *tiktoken.Tiktoken
	fallback *Estimator
	once     sync.Once
	initErr  error
}

// NewTiktoken 创建 tiktoken 计数器。encoding 为空时使用 cl100k_base。
func NewTiktoken(encoding string) *Tiktoken {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	return &Tiktoken{
		encoding: encoding,
		fallback: NewEstimator(),
	}
}

func (t *Tiktoken) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

func (t *Tiktoken) CountTokens(text string) int {
	if err := t.init(); err != nil {
		return t.fallback.CountTokens(text)
	}
	return len(t.enc.Encode(text, nil, nil))
}

func (t *Tiktoken) Name() string {
	return fmt.Sprintf("tiktoken[%s]", t.encoding)
}
