package sandbox

// driverScript runs inside the interpreter process. It seeds the same
// environment the analysis prompts promise (df plus the usual scientific
// stack), executes code.py with stdout captured, then writes result.json.
// Optional libraries are loaded best-effort so a missing statsmodels or
// lifelines fails only the code that names it.
const driverScript = `import io
import sys
import json
import base64
import warnings
from datetime import datetime

warnings.filterwarnings('ignore')

import matplotlib
matplotlib.use('Agg')
import matplotlib.pyplot as plt
import numpy as np
import pandas as pd

EXEC_GLOBALS = {
    'pd': pd,
    'np': np,
    'plt': plt,
    'io': io,
    'base64': base64,
    'json': json,
    'datetime': datetime,
}

try:
    import seaborn as sns
    EXEC_GLOBALS['sns'] = sns
except ImportError:
    pass

try:
    from scipy import stats
    EXEC_GLOBALS['stats'] = stats
except ImportError:
    pass

try:
    from sklearn.linear_model import LinearRegression
    from sklearn.metrics import r2_score
    EXEC_GLOBALS['LinearRegression'] = LinearRegression
    EXEC_GLOBALS['r2_score'] = r2_score
except ImportError:
    pass

try:
    import plotly.graph_objects as go
    import plotly.express as px
    import plotly.figure_factory as ff
    import plotly.io as pio
    EXEC_GLOBALS['go'] = go
    EXEC_GLOBALS['px'] = px
    EXEC_GLOBALS['ff'] = ff
    EXEC_GLOBALS['pio'] = pio
except ImportError:
    pass

try:
    import statsmodels.api as sm
    from statsmodels.stats.contingency_tables import mcnemar
    EXEC_GLOBALS['sm'] = sm
    EXEC_GLOBALS['mcnemar'] = mcnemar
except ImportError:
    pass

try:
    from lifelines import KaplanMeierFitter, CoxPHFitter
    from lifelines.statistics import logrank_test
    EXEC_GLOBALS['KaplanMeierFitter'] = KaplanMeierFitter
    EXEC_GLOBALS['CoxPHFitter'] = CoxPHFitter
    EXEC_GLOBALS['logrank_test'] = logrank_test
except ImportError:
    pass


def collect_plots():
    plots = []
    for fig_num in plt.get_fignums():
        try:
            fig = plt.figure(fig_num)
            buf = io.BytesIO()
            try:
                fig.savefig(buf, format='png', bbox_inches='tight', dpi=100)
            except Exception:
                fig.savefig(buf, format='png', dpi=80)
            buf.seek(0)
            plots.append({
                'type': 'matplotlib',
                'data': base64.b64encode(buf.read()).decode('utf-8'),
                'fig_num': int(fig_num),
            })
            buf.close()
        except Exception:
            continue
    plt.close('all')

    for name, value in list(EXEC_GLOBALS.items()):
        try:
            if hasattr(value, '_module') and 'plotly' in str(value._module):
                plots.append({
                    'type': 'plotly',
                    'html': value.to_html(include_plotlyjs='cdn'),
                    'variable_name': name,
                })
        except Exception:
            continue
    return plots


def frame_summary(value):
    try:
        cells = len(value) * len(value.columns)
        missing = int(value.isnull().sum().sum())
        return {
            'total_rows': int(len(value)),
            'total_columns': int(len(value.columns)),
            'numeric_columns': int(len(value.select_dtypes(include=[np.number]).columns)),
            'categorical_columns': int(len(value.select_dtypes(include=['object']).columns)),
            'missing_values': missing,
            'completion_rate': round(float(1 - missing / cells) * 100, 2) if cells else 0.0,
        }
    except Exception:
        return None


def collect_frames():
    frames = []
    for name, value in list(EXEC_GLOBALS.items()):
        if name == 'df' or name.startswith('_'):
            continue
        if isinstance(value, pd.DataFrame):
            try:
                frames.append({
                    'name': name,
                    'html': value.head(50).to_html(),
                    'text': value.to_string(),
                    'shape': [int(value.shape[0]), int(value.shape[1])],
                    'columns': [str(c) for c in value.columns],
                    'head': json.loads(value.head(10).to_json(orient='records')),
                    'summary': frame_summary(value),
                })
            except Exception:
                continue
    return frames


def main():
    df = pd.read_csv('data.csv')
    dtypes = df.dtypes.to_dict()
    numeric_cols = [c for c, t in dtypes.items() if 'int' in str(t) or 'float' in str(t)]
    categorical_cols = [c for c, t in dtypes.items() if 'object' in str(t)]

    EXEC_GLOBALS['df'] = df
    EXEC_GLOBALS['numeric_cols'] = numeric_cols
    EXEC_GLOBALS['categorical_cols'] = categorical_cols
    EXEC_GLOBALS['columns'] = list(df.columns)

    with open('code.py') as f:
        code = f.read()

    result = {'success': True, 'output': '', 'error': '', 'error_type': '', 'plots': [], 'frames': []}

    buffer = io.StringIO()
    old_stdout = sys.stdout
    sys.stdout = buffer
    try:
        exec(code, EXEC_GLOBALS)
    except SystemExit:
        result['success'] = False
        result['error'] = 'Code execution was terminated (exit() or quit() called)'
        result['error_type'] = 'SystemExit'
    except Exception as exc:
        result['success'] = False
        result['error'] = str(exc)
        result['error_type'] = type(exc).__name__
    finally:
        sys.stdout = old_stdout

    result['output'] = buffer.getvalue()
    try:
        result['plots'] = collect_plots()
    except Exception:
        pass
    try:
        result['frames'] = collect_frames()
    except Exception:
        pass

    with open('result.json', 'w') as f:
        json.dump(result, f)


if __name__ == '__main__':
    main()
`
