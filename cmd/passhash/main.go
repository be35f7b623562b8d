// passhash prints the bcrypt hash to use as CATALOG_ADMIN_PASSWORD_HASH.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/2beens/catalogguard/pkg"

	log "github.com/sirupsen/logrus"
)

func main() {
	password := flag.String("password", "", "admin password; read from stdin when empty")
	cost := flag.Int("cost", pkg.PasswordHashCost, "bcrypt cost")
	flag.Parse()

	if *password == "" {
		fmt.Fprint(os.Stderr, "password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			log.Fatalf("read password: %s", err)
		}
		*password = strings.TrimRight(line, "\r\n")
	}
	if *password == "" {
		log.Fatal("empty password")
	}

	pkg.PasswordHashCost = *cost
	hash, err := pkg.HashPassword(*password)
	if err != nil {
		log.Fatalf("hash password: %s", err)
	}

	fmt.Println(hash)
}
