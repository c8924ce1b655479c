package translation

import (
	"context"
	"fmt"

	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/regions"
	tmt "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/tmt/v20180321"
)

// Tencent 腾讯云机器翻译后端
type Tencent struct {
	client *tmt.Client
}

// TencentOption 调整客户端配置
type TencentOption func(*profile.ClientProfile)

// WithTencentEndpoint 覆盖接口地址，scheme 为 "http" 或 "https"
func WithTencentEndpoint(scheme, endpoint string) TencentOption {
	return func(cpf *profile.ClientProfile) {
		cpf.HttpProfile.Scheme = scheme
		cpf.HttpProfile.Endpoint = endpoint
	}
}

// NewTencent 创建腾讯云翻译后端
func NewTencent(secretID, secretKey, region string, timeoutSeconds int, opts ...TencentOption) (*Tencent, error) {
	if region == "" {
		region = regions.Guangzhou
	}
	credential := common.NewCredential(secretID, secretKey)

	cpf := profile.NewClientProfile()
	cpf.HttpProfile.ReqMethod = "POST"
	if timeoutSeconds > 0 {
		cpf.HttpProfile.ReqTimeout = timeoutSeconds
	}
	for _, opt := range opts {
		opt(cpf)
	}

	client, err := tmt.NewClient(credential, region, cpf)
	if err != nil {
		return nil, fmt.Errorf("new tencent tmt client: %w", err)
	}
	return &Tencent{client: client}, nil
}

// Name 后端名称
func (t *Tencent) Name() string {
	return "tencent"
}

// Translate 自动识别源语言后翻译
func (t *Tencent) Translate(ctx context.Context, text, target string) (*Result, error) {
	request := tmt.NewTextTranslateRequest()
	request.SourceText = common.StringPtr(text)
	request.Source = common.StringPtr("auto")
	request.Target = common.StringPtr(target)
	request.ProjectId = common.Int64Ptr(0)

	response, err := t.client.TextTranslateWithContext(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("tencent text translate: %w", err)
	}
	if response.Response == nil || response.Response.TargetText == nil {
		return nil, fmt.Errorf("tencent text translate: empty response")
	}

	r := &Result{TranslatedText: *response.Response.TargetText}
	if response.Response.Source != nil {
		r.OriginalLanguage = *response.Response.Source
	}
	return r, nil
}

// Romanize 腾讯云不支持罗马音
func (t *Tencent) Romanize(context.Context, string, string) (string, error) {
	return "", ErrUnsupported
}
