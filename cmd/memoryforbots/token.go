package main

import (
	"fmt"
	"time"

	"github.com/lox/memoryforbots/internal/auth"
)

type TokenCmd struct {
	Secret string        `required:"" env:"MEMORYFORBOTS_JWT_SECRET" help:"HMAC secret shared with the server"`
	Caller string        `arg:"" help:"Caller ID to embed as the subject"`
	Name   string        `help:"Display name (defaults to the caller ID)"`
	TTL    time.Duration `default:"24h" help:"Token lifetime"`
}

func (c *TokenCmd) Run() error {
	token, err := auth.NewJWTValidator([]byte(c.Secret)).Issue(c.Caller, c.Name, c.TTL)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
