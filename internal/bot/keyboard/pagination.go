package keyboard

import (
	"fmt"
	"strconv"
)

const (
	TextPrevPage = "◀️ Prev"
	TextNextPage = "Next ▶️"
)

// PaginationButtons returns up to three buttons (prev, current page, next) sharing the unique
// endpoint. Each carries "<scope>|<page>" so the handler knows which list to page through.
func PaginationButtons(unique, scope string, page, totalPages int) []Button {
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	buttons := make([]Button, 0, 3)

	if page > 1 {
		buttons = append(buttons, Button{
			Text:   TextPrevPage,
			Unique: unique,
			Data:   pageData(scope, page-1),
		})
	}

	buttons = append(buttons, Button{
		Text:   fmt.Sprintf("Page %d/%d", page, totalPages),
		Unique: unique,
		Data:   pageData(scope, page),
	})

	if page < totalPages {
		buttons = append(buttons, Button{
			Text:   TextNextPage,
			Unique: unique,
			Data:   pageData(scope, page+1),
		})
	}

	return buttons
}

// TotalPages returns how many pages of size pageSize are needed for n items.
func TotalPages(n, pageSize int) int {
	if pageSize <= 0 || n <= 0 {
		return 1
	}
	return (n + pageSize - 1) / pageSize
}

func pageData(scope string, page int) string {
	if scope == "" {
		return strconv.Itoa(page)
	}
	return scope + DataSeparator + strconv.Itoa(page)
}
