package router_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/ajayykmr/sms-forwarder/internal/faults"
	"github.com/ajayykmr/sms-forwarder/internal/models"
	"github.com/ajayykmr/sms-forwarder/internal/router"
)

var (
	allRoutes     = []models.Route{models.RouteEmail, models.RouteText, models.RouteDiscord}
	warningRoutes = []models.Route{models.RouteEmail, models.RouteDiscord}
	codeRoutes    = []models.Route{models.RouteEmail, models.RouteText}
	emailOnly     = []models.Route{models.RouteEmail}
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []models.Route
	}{
		{name: "critical", body: "[CRITICAL] disk full", want: allRoutes},
		{name: "critical wins over warning", body: "[WARNING] then [CRITICAL]", want: allRoutes},
		{name: "critical wins over code", body: "[CRITICAL] your code is 482913", want: allRoutes},
		{name: "warning", body: "[WARNING] cpu at 90%", want: warningRoutes},
		{name: "warning wins over code", body: "[WARNING] login code 1234", want: warningRoutes},
		{name: "verification code", body: "your code is 482913", want: codeRoutes},
		{name: "sign-in code", body: "sign-in with 8765", want: codeRoutes},
		{name: "eight digits", body: "passcode: 12345678", want: codeRoutes},
		{name: "second keyword", body: "Your verification number: 0042", want: codeRoutes},
		{name: "plain text", body: "Hello World!", want: emailOnly},
		{name: "keyword without digits", body: "your login failed", want: emailOnly},
		{name: "digits without keyword", body: "call me at 5551234", want: emailOnly},
		{name: "three digits", body: "code 123", want: emailOnly},
		{name: "nine digit run", body: "code 123456789", want: emailOnly},
		{name: "digits glued to letters", body: "code abc1234", want: emailOnly},
		{name: "case sensitive keyword", body: "CODE 1234", want: emailOnly},
		{name: "case sensitive marker", body: "[critical] disk full", want: emailOnly},
		{name: "empty body", body: "", want: emailOnly},
		{name: "code at start of body", body: "4829 is your code", want: codeRoutes},
		{name: "punctuated code", body: "login code: 4829.", want: codeRoutes},
		{name: "arabic-indic digits", body: "your code is ٤٨٢٩١٣", want: codeRoutes},
		{name: "digits glued to accented letter", body: "code é1234", want: emailOnly},
		{name: "digits glued to underscore", body: "code _1234", want: emailOnly},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			in := &models.ExtractedMessage{From: "+15550001111", Body: tc.body, CreatedAt: time.Unix(0, 0)}
			out, err := router.Classify(in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(out.Routes, tc.want) {
				t.Fatalf("routes for %q = %v, want %v", tc.body, out.Routes, tc.want)
			}
			if out.Routes[0] != models.RouteEmail {
				t.Fatalf("expected email to lead the route set, got %v", out.Routes)
			}
		})
	}
}

func TestClassifyDoesNotMutateInput(t *testing.T) {
	in := &models.ExtractedMessage{From: "+1", Body: "[CRITICAL] x", CreatedAt: time.Unix(10, 0)}
	out, err := router.Classify(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Routes != nil {
		t.Fatalf("expected input routes untouched, got %v", in.Routes)
	}
	if out == in {
		t.Fatalf("expected a copy, got the same pointer")
	}
	if out.From != in.From || out.Body != in.Body || !out.CreatedAt.Equal(in.CreatedAt) {
		t.Fatalf("expected base fields preserved, got %+v", out)
	}
}

func TestClassifyIsIdempotent(t *testing.T) {
	in := &models.ExtractedMessage{From: "+1", Body: "your code is 482913", CreatedAt: time.Unix(10, 0)}
	first, err := router.Classify(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := router.Classify(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results, got %+v and %+v", first, second)
	}

	again, err := router.Classify(first)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(again.Routes, first.Routes) {
		t.Fatalf("expected reclassification to be stable, got %v", again.Routes)
	}
}

func TestClassifyNilMessage(t *testing.T) {
	out, err := router.Classify(nil)
	if out != nil {
		t.Fatalf("expected nil result, got %+v", out)
	}
	if !faults.Is(err, faults.KindRouteProcessing) {
		t.Fatalf("expected route processing fault, got %v", err)
	}
}
