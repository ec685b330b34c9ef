package configmap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dkrizic/groupstore/persistence"
	"go.opentelemetry.io/otel"
	v1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
)

// MaxDataSize is the API server limit for the data of a single ConfigMap.
const MaxDataSize = 1024 * 1024

const namespaceFile = "/var/run/secrets/kubernetes.io/serviceaccount/namespace"

type configMapClient interface {
	Get(ctx context.Context, name string, opts metav1.GetOptions) (*v1.ConfigMap, error)
	Create(ctx context.Context, configMap *v1.ConfigMap, opts metav1.CreateOptions) (*v1.ConfigMap, error)
	Update(ctx context.Context, configMap *v1.ConfigMap, opts metav1.UpdateOptions) (*v1.ConfigMap, error)
}

// injectable for tests
var (
	k8sClientFn    = inClusterClient
	ownNamespaceFn = ownNamespace
)

type Persistence struct {
	configMapName string
}

func NewConfigMapPersistence(configMapName string) *Persistence {
	return &Persistence{
		configMapName: configMapName,
	}
}

func (p *Persistence) Read(ctx context.Context, key string) (string, bool, error) {
	ctx, span := otel.Tracer("persistence/configmap").Start(ctx, "Read")
	defer span.End()

	client, ns, err := k8sClientFn(ctx, p.configMapName)
	if err != nil {
		return "", false, fmt.Errorf("kubernetes client: %v: %w", err, persistence.ErrUnavailable)
	}

	cm, err := client.Get(ctx, p.configMapName, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		slog.DebugContext(ctx, "ConfigMap does not exist yet", "namespace", *ns, "name", p.configMapName)
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("getting configmap %s/%s: %v: %w", *ns, p.configMapName, err, persistence.ErrUnavailable)
	}

	text, ok := cm.Data[key]
	slog.DebugContext(ctx, "Reading", "namespace", *ns, "name", p.configMapName, "key", key, "found", ok)
	return text, ok, nil
}

func (p *Persistence) Write(ctx context.Context, key string, text string) error {
	ctx, span := otel.Tracer("persistence/configmap").Start(ctx, "Write")
	defer span.End()

	client, ns, err := k8sClientFn(ctx, p.configMapName)
	if err != nil {
		return fmt.Errorf("kubernetes client: %v: %w", err, persistence.ErrUnavailable)
	}

	cm, err := client.Get(ctx, p.configMapName, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		cm = &v1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{
				Name:      p.configMapName,
				Namespace: *ns,
			},
			Data: map[string]string{key: text},
		}
		if err := checkSize(cm.Data); err != nil {
			return err
		}
		if _, err := client.Create(ctx, cm, metav1.CreateOptions{}); err != nil {
			return classify(ctx, "creating", *ns, p.configMapName, err)
		}
		slog.InfoContext(ctx, "Created configmap", "namespace", *ns, "name", p.configMapName, "key", key)
		return nil
	}
	if err != nil {
		return fmt.Errorf("getting configmap %s/%s: %v: %w", *ns, p.configMapName, err, persistence.ErrUnavailable)
	}

	if cm.Data == nil {
		cm.Data = map[string]string{}
	}
	cm.Data[key] = text
	if err := checkSize(cm.Data); err != nil {
		return err
	}
	if _, err := client.Update(ctx, cm, metav1.UpdateOptions{}); err != nil {
		return classify(ctx, "updating", *ns, p.configMapName, err)
	}
	slog.DebugContext(ctx, "Writing", "namespace", *ns, "name", p.configMapName, "key", key, "size", len(text))
	return nil
}

func checkSize(data map[string]string) error {
	size := 0
	for k, v := range data {
		size += len(k) + len(v)
	}
	if size > MaxDataSize {
		return fmt.Errorf("configmap data is %d bytes, limit %d: %w", size, MaxDataSize, persistence.ErrQuotaExceeded)
	}
	return nil
}

func classify(ctx context.Context, op, ns, name string, err error) error {
	slog.ErrorContext(ctx, "ConfigMap request failed", "op", op, "namespace", ns, "name", name, "error", err)
	if apierrors.IsRequestEntityTooLargeError(err) {
		return fmt.Errorf("%s configmap %s/%s: %v: %w", op, ns, name, err, persistence.ErrQuotaExceeded)
	}
	return fmt.Errorf("%s configmap %s/%s: %v: %w", op, ns, name, err, persistence.ErrUnavailable)
}

func inClusterClient(ctx context.Context, configMapName string) (configMapClient, *string, error) {
	ns, err := ownNamespaceFn(ctx)
	if err != nil {
		return nil, nil, err
	}
	config, err := rest.InClusterConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("in-cluster config: %w", err)
	}
	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, nil, fmt.Errorf("creating clientset: %w", err)
	}
	return clientset.CoreV1().ConfigMaps(*ns), ns, nil
}

func ownNamespace(ctx context.Context) (*string, error) {
	if ns := os.Getenv("POD_NAMESPACE"); ns != "" {
		return &ns, nil
	}
	raw, err := os.ReadFile(namespaceFile)
	if err != nil {
		slog.WarnContext(ctx, "Cannot determine namespace, using default", "error", err)
		ns := "default"
		return &ns, nil
	}
	ns := strings.TrimSpace(string(raw))
	return &ns, nil
}
