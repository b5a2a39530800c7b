package repository

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"wholesale_catalog/internal/model"
	"wholesale_catalog/pkg/logger"

	"gorm.io/gorm"
)

// FirstCode is used for an empty catalog and as the fallback when the scan fails.
const FirstCode = "A0001"

var codePattern = regexp.MustCompile(`^A(\d+)$`)

// NextCode returns A + (max numeric suffix + 1) zero-padded to 4 digits.
// Codes that do not match A<digits> are ignored.
func NextCode(codes []string) string {
	maxN := 0
	for _, c := range codes {
		m := codePattern.FindStringSubmatch(c)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > maxN {
			maxN = n
		}
	}
	return fmt.Sprintf("A%04d", maxN+1)
}

// nextCode scans the codes visible to tx. It never fails: a lookup error falls
// back to FirstCode with a warning so creation is not blocked.
func nextCode(ctx context.Context, tx *gorm.DB) string {
	var codes []string
	err := tx.Model(&model.Product{}).
		Where("codigo LIKE ?", "A%").
		Pluck("codigo", &codes).Error
	if err != nil {
		logger.Warn(ctx, "next product code lookup failed", "fallback", FirstCode, "error", err)
		return FirstCode
	}
	return NextCode(codes)
}
