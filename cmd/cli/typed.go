// cmd/cli/typed.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/winecellar/internal/convert"
)

// ------- validators -------

func validBottleSize(l float64) bool { return l > 0 && l < 100 }

func validRating(r float64) bool { return r >= 0 && r <= 100 }

// tokenExpiry reads exp from a token without verifying it; the server has
// already done that. Falls back to 15 minutes from now.
func tokenExpiry(tok string) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	return time.Now().Add(15 * time.Minute)
}

func newFlags(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

// ------- commands -------

// cmdLogin exchanges credentials for a token and caches it.
func cmdLogin(ctx context.Context, c *client, args []string, out io.Writer) error {
	fs := newFlags("login", out)
	user := fs.String("u", "", "username")
	pass := fs.String("p", "", "password")
	scope := fs.String("scope", "CELLAR:READ CELLAR:WRITE", "space-separated scopes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" || *pass == "" {
		return errors.New("need -u and -p")
	}

	var tv convert.TokenView
	form := url.Values{"username": {*user}, "password": {*pass}, "scope": {*scope}}
	if err := c.postForm(ctx, "/users/token", form, &tv); err != nil {
		return err
	}
	if err := saveToken(c.base, tv.AccessToken, tokenExpiry(tv.AccessToken)); err != nil {
		return err
	}
	fmt.Fprintln(out, "ok")
	return nil
}

func cmdStorages(ctx context.Context, c *client, args []string, out io.Writer) error {
	if err := newFlags("storages", out).Parse(args); err != nil {
		return err
	}
	var ss []convert.StorageView
	if err := c.call(ctx, http.MethodGet, "/cellar_views/storages", nil, &ss); err != nil {
		return err
	}
	printJSON(out, ss)
	return nil
}

func cmdAddStorage(ctx context.Context, c *client, args []string, out io.Writer) error {
	fs := newFlags("add-storage", out)
	loc := fs.String("location", "", "where the bottles live")
	desc := fs.String("description", "", "free text")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*loc) == "" {
		return errors.New("need -location")
	}
	var sv convert.StorageView
	req := convert.NewStorageRequest{Location: *loc, Description: *desc}
	if err := c.call(ctx, http.MethodPost, "/cellar/storages/add", req, &sv); err != nil {
		return err
	}
	printJSON(out, sv)
	return nil
}

// cmdAddBottles stores bottles; wine details come from flags or a JSON file.
func cmdAddBottles(ctx context.Context, c *client, args []string, out io.Writer) error {
	fs := newFlags("add-bottles", out)
	storage := fs.Int64("storage", 0, "storage id")
	name := fs.String("name", "", "wine name")
	vintage := fs.Int("vintage", 0, "vintage year")
	qty := fs.Int("qty", 1, "number of bottles")
	size := fs.Float64("size", 0.75, "bottle size in litres")
	wineFile := fs.String("wine-file", "", "JSON wine description (file or -)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	wine := convert.WineView{Name: *name, Vintage: *vintage}
	if *wineFile != "" {
		b, err := readAll(*wineFile)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(b, &wine); err != nil {
			return fmt.Errorf("wine file: %w", err)
		}
	}
	switch {
	case *storage <= 0:
		return errors.New("need -storage")
	case wine.Name == "":
		return errors.New("need -name or a wine file with a name")
	case *qty <= 0:
		return errors.New("-qty must be positive")
	case !validBottleSize(*size):
		return errors.New("-size must be between 0 and 100 litres")
	}

	req := convert.AddBottlesRequest{StorageID: *storage, BottleSize: *size, Quantity: *qty, Wine: wine}
	var ev convert.EntryView
	if err := c.call(ctx, http.MethodPost, "/cellar/bottles/add", req, &ev); err != nil {
		return err
	}
	printJSON(out, ev)
	return nil
}

func cmdStock(ctx context.Context, c *client, args []string, out io.Writer) error {
	fs := newFlags("stock", out)
	storage := fs.Int64("storage", 0, "limit to one storage id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path := "/cellar_views/bottles"
	if *storage > 0 {
		path += "?storage_id=" + strconv.FormatInt(*storage, 10)
	}
	var items []convert.StockView
	if err := c.call(ctx, http.MethodGet, path, nil, &items); err != nil {
		return err
	}
	printJSON(out, items)
	return nil
}

func cmdDrinkable(ctx context.Context, c *client, args []string, out io.Writer) error {
	fs := newFlags("drinkable", out)
	year := fs.Int("year", 0, "year to check (default: current)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path := "/cellar_views/drinkable"
	if *year > 0 {
		path += "?year=" + strconv.Itoa(*year)
	}
	var items []convert.StockView
	if err := c.call(ctx, http.MethodGet, path, nil, &items); err != nil {
		return err
	}
	printJSON(out, items)
	return nil
}

// cmdConsume takes bottles out and optionally records a rating.
func cmdConsume(ctx context.Context, c *client, args []string, out io.Writer) error {
	fs := newFlags("consume", out)
	wine := fs.Int64("wine", 0, "wine id")
	storage := fs.Int64("storage", 0, "storage id")
	qty := fs.Int("qty", 1, "number of bottles")
	size := fs.Float64("size", 0.75, "bottle size in litres")
	rating := fs.Float64("rating", -1, "rating 0-100 (omit to skip)")
	comment := fs.String("comment", "", "tasting note")
	if err := fs.Parse(args); err != nil {
		return err
	}
	switch {
	case *wine <= 0 || *storage <= 0:
		return errors.New("need -wine and -storage")
	case *qty <= 0:
		return errors.New("-qty must be positive")
	case !validBottleSize(*size):
		return errors.New("-size must be between 0 and 100 litres")
	}

	req := convert.ConsumeRequest{WineID: *wine, StorageID: *storage, BottleSize: *size, Quantity: *qty}
	if *rating >= 0 {
		if !validRating(*rating) {
			return errors.New("-rating must be between 0 and 100")
		}
		req.Rating = &convert.RatingRequest{Rating: *rating, Comment: *comment}
	}
	var cv convert.ConsumeView
	if err := c.call(ctx, http.MethodPost, "/cellar/bottles/consume", req, &cv); err != nil {
		return err
	}
	printJSON(out, cv)
	return nil
}
