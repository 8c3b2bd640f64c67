package routes

// Page описывает одну страницу элементов.
type Page[T any] struct {
	Items    []T   `json:"items"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	HasNext  bool  `json:"hasNext"`
	HasPrev  bool  `json:"hasPrev"`
	Total    int64 `json:"total"`
}

const defaultPageSize = 20

// pageOf собирает метаданные страницы вокруг уже отфильтрованного
// хранилищем среза. page нумеруется с 1.
func pageOf[T any](items []T, page, pageSize int, total int64) Page[T] {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if page <= 0 {
		page = 1
	}
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:    items,
		Page:     page,
		PageSize: pageSize,
		HasNext:  int64(page)*int64(pageSize) < total,
		HasPrev:  page > 1,
		Total:    total,
	}
}

// pageParams достаёт page/page_size с дефолтами.
func pageParams(page, pageSize int) (int, int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = defaultPageSize
	}
	offset := (page - 1) * pageSize
	return page, pageSize, offset
}
