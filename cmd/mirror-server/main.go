package main

import (
	"flag"
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

// mirror-server serves saved copies of the glossary sites so collectors can
// run against them offline. Lay the directory out by site, e.g.
//
//	data/mirror/smbc/a/index.html
//	data/mirror/okasan/index.html
//	data/mirror/okasan/datail/123.html
//	data/mirror/rakuten/a/index.html
//
// and point each source's base_url at http://localhost:9000/mirror/<site>/
// (for okasan, at its index.html).
func main() {
	var (
		addr = flag.String("addr", ":9000", "listen address")
		dir  = flag.String("dir", "data/mirror", "directory of saved pages")
	)
	flag.Parse()

	if st, err := os.Stat(*dir); err != nil || !st.IsDir() {
		log.Fatalf("mirror dir %s is not readable: %v", *dir, err)
	}

	router := gin.Default()
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "dir": *dir})
	})
	router.StaticFS("/mirror", gin.Dir(*dir, false))

	log.Printf("mirror-server serving %s on %s", *dir, *addr)
	log.Fatal(router.Run(*addr))
}
