package common

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// HTTPArguments describes a single outgoing request.
type HTTPArguments struct {
	Method      string
	URL         string
	Headers     map[string]string
	Query       map[string]string
	Body        any
	Username    string
	Password    string
	BearerToken string
}

func InvokeHttpRequestWithClient(client *resty.Client, r *HTTPArguments) (*resty.Response, error) {

	builder, err := CreateRequestBuilderWithClient(client, r)

	if err != nil {
		return nil, err
	}

	resp, err := MakeRequestFromBuilder(builder, r.Method, r.URL)

	if err != nil {
		logrus.WithFields(logrus.Fields{
			"url": r.URL,
		}).WithError(err).Debugln("HTTP request failed")
		return nil, err
	}

	return resp, nil

}

func MakeRequestFromBuilder(restBuilder *resty.Request, method string, finalUrl string) (*resty.Response, error) {

	if len(method) == 0 {
		method = http.MethodGet
	}

	switch strings.ToUpper(method) {
	case http.MethodGet:
		return restBuilder.Get(finalUrl)
	case http.MethodPost:
		return restBuilder.Post(finalUrl)
	case http.MethodPut:
		return restBuilder.Put(finalUrl)
	case http.MethodDelete:
		return restBuilder.Delete(finalUrl)
	default:
		return nil, fmt.Errorf("unsupported HTTP method: %s. Ensure you're using the http const", method)
	}

}

func CreateRequestBuilderWithClient(client *resty.Client, req *HTTPArguments) (*resty.Request, error) {
	if req == nil {
		return nil, fmt.Errorf("request is nil")
	}
	if len(req.URL) == 0 {
		return nil, fmt.Errorf("endpoint is empty")
	}

	restBuilder := client.R()

	switch {
	case len(req.BearerToken) > 0:
		restBuilder.SetAuthToken(req.BearerToken)
	case len(req.Username) > 0:
		restBuilder.SetBasicAuth(req.Username, req.Password)
	}

	for k, v := range req.Query {
		restBuilder.SetQueryParam(k, v)
	}

	if len(req.Headers) > 0 {
		restBuilder.SetHeaders(req.Headers)
	}

	if req.Body != nil {
		restBuilder.SetBody(req.Body).
			SetHeader("Content-Type", "application/json")
	}

	return restBuilder, nil
}
