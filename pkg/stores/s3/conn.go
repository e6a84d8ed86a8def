package s3

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

/*
Conn wraps a MinIO client pointed at any S3-compatible endpoint. It is
the low-level transport for snapshot backups; Snapshots layers the graph
semantics on top.
*/
type Conn struct {
	client *minio.Client
}

/*
ConnConfig carries the endpoint and credentials for an S3 connection.
*/
type ConnConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

/*
NewConn dials the configured endpoint. No network call happens here; the
client is lazy and errors surface on first use.
*/
func NewConn(cfg ConnConfig) (*Conn, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	return &Conn{client: client}, nil
}

/*
EnsureBucket creates the bucket when it does not exist yet.
*/
func (conn *Conn) EnsureBucket(ctx context.Context, bucketName string) error {
	exists, err := conn.client.BucketExists(ctx, bucketName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return conn.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{})
}

/*
Get retrieves an object and returns its full contents.
*/
func (conn *Conn) Get(
	ctx context.Context, bucketName string, objectKey string,
) ([]byte, error) {
	obj, err := conn.client.GetObject(
		ctx, bucketName, objectKey, minio.GetObjectOptions{},
	)
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	return io.ReadAll(obj)
}

/*
Put uploads an object, overwriting any previous version under the key.
*/
func (conn *Conn) Put(
	ctx context.Context,
	bucketName string,
	objectKey string,
	body io.Reader,
	size int64,
) error {
	_, err := conn.client.PutObject(
		ctx, bucketName, objectKey, body, size,
		minio.PutObjectOptions{ContentType: "application/json"},
	)
	return err
}

/*
List returns the object keys under a prefix.
*/
func (conn *Conn) List(
	ctx context.Context, bucketName string, prefix string,
) ([]string, error) {
	var keys []string

	for obj := range conn.client.ListObjects(ctx, bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		keys = append(keys, obj.Key)
	}

	return keys, nil
}
