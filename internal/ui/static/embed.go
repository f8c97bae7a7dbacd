// Пакет static — стили веб-консоли, встроенные в бинарник.
package static

import (
	"embed"
	"net/http"
)

//go:embed css/*.css
var styles embed.FS

// FileSystem раздаёт встроенные стили по путям вида /static/css/app.css.
func FileSystem() http.FileSystem {
	return http.FS(styles)
}
