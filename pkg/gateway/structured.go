package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/easyops/ragcontext-go/pkg/core/errors"
	"github.com/easyops/ragcontext-go/pkg/rag"
)

// ParseStructured 将 JSON 响应（可带 ```json 围栏）解析为 T 并记录到 doc
func ParseStructured[T any](doc *rag.MultiDocumentContext) (T, error) {
	var out T
	if doc == nil {
		return out, errors.Validationf("context document is required")
	}
	resp, ok := doc.Response()
	if !ok {
		return out, errors.Validationf("response is not set")
	}

	if err := json.Unmarshal([]byte(trimFence(resp)), &out); err != nil {
		return out, fmt.Errorf("%w: %v", errors.ErrDeserialization, err)
	}
	doc.SetStructured(out)
	return out, nil
}
