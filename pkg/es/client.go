// Package es 提供了 Elasticsearch 客户端的初始化。索引结构与文档读写交由
// pkg/vectorstore 管理（§4.2 Vector Store 模块），本包只负责连接建立。
package es

import (
	"crypto/tls"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"

	"mockinterview-go/internal/config"
)

// ESClient 是全局共享的 Elasticsearch 客户端实例。
var ESClient *elasticsearch.Client

// InitES 初始化 Elasticsearch 客户端。
func InitES(esCfg config.ElasticsearchConfig) error {
	cfg := elasticsearch.Config{
		Addresses: []string{esCfg.Addresses},
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return err
	}
	ESClient = client
	return nil
}
