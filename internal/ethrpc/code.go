package ethrpc

import (
	"context"
	"fmt"
	"math/big"

	"github.com/roach88/relaymigrate/internal/domain"
)

// CodeReader reads deployed bytecode.
type CodeReader interface {
	CodeAt(ctx context.Context, account domain.Address, blockNumber *big.Int) ([]byte, error)
}

// CodeInspector implements domain.CodeInspector.
type CodeInspector struct {
	reader CodeReader
}

// NewCodeInspector returns an inspector reading from r.
func NewCodeInspector(r CodeReader) *CodeInspector {
	return &CodeInspector{reader: r}
}

// IsContract reports whether account has code at the latest block.
func (c *CodeInspector) IsContract(ctx context.Context, account domain.Address) (bool, error) {
	code, err := c.reader.CodeAt(ctx, account, nil)
	if err != nil {
		return false, fmt.Errorf("code at %s: %w", account.Hex(), err)
	}
	return len(code) > 0, nil
}
