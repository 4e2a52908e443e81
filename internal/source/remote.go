package source

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/shouni/go-remote-io/pkg/remoteio"
)

// RemoteReader は必要なクラウドストレージのクライアントだけを持つ remoteio.InputReader です。
// ローカルパスは常に読み込めます。
type RemoteReader struct {
	remoteio.InputReader
	gcs     *storage.Client
	schemes []Scheme
}

// NewRemoteReader は schemes に gs / s3 が含まれる場合にだけ対応するクライアントを作成します。
// 認証情報はそれぞれの SDK の既定の探索順 (環境変数, 共有設定ファイル, メタデータサーバー) に従います。
func NewRemoteReader(ctx context.Context, schemes map[Scheme]bool) (*RemoteReader, error) {
	r := &RemoteReader{}

	if schemes[SchemeGCS] {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("GCSクライアントの初期化に失敗しました: %w", err)
		}
		r.gcs = client
		r.schemes = append(r.schemes, SchemeGCS)
	}

	var s3Client *s3.Client
	if schemes[SchemeS3] {
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("AWS設定の読み込みに失敗しました: %w", err)
		}
		s3Client = s3.NewFromConfig(awsCfg)
		r.schemes = append(r.schemes, SchemeS3)
	}

	r.InputReader = remoteio.NewUniversalInputReader(r.gcs, s3Client)
	return r, nil
}

// Schemes は読み込めるリモートのスキームを返します。
func (r *RemoteReader) Schemes() []Scheme {
	return r.schemes
}

// Close は GCS クライアントを閉じます。S3 クライアントは閉じる必要がありません。
func (r *RemoteReader) Close() error {
	if r.gcs == nil {
		return nil
	}
	err := r.gcs.Close()
	r.gcs = nil
	return err
}
